package redis

// Key prefixes for primary entity storage.
const (
	prefixEvent   = "webhooks:evt:"
	prefixTask    = "webhooks:task:"
	prefixProfile = "webhooks:profile:"
	prefixAccount = "webhooks:account:"
	prefixDLQ     = "webhooks:dlq:"
)

// Key prefixes for unique indexes.
const (
	uniqueEventIdem = "webhooks:u:evt:idem:"
)

// eventIdemKey scopes the idempotency reservation per merchant.
func eventIdemKey(merchantID, idemID string) string {
	return uniqueEventIdem + merchantID + ":" + idemID
}

// Keys for list and queue indexes.
const (
	zTaskDue          = "webhooks:z:task:due"
	zDLQAll           = "webhooks:z:dlq:all"
	lEventResponses   = "webhooks:l:evt:resp:"       // + event ID
	sAccountConnector = "webhooks:s:account:byconn:" // + merchantID + ":" + connectorName
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// profileEntityKey scopes profiles per merchant.
func profileEntityKey(merchantID, profileID string) string {
	return prefixProfile + merchantID + ":" + profileID
}

// accountEntityKey scopes connector accounts per merchant.
func accountEntityKey(merchantID, accountID string) string {
	return prefixAccount + merchantID + ":" + accountID
}

// accountConnectorKey indexes accounts by (merchant, connector).
func accountConnectorKey(merchantID, connectorName string) string {
	return sAccountConnector + merchantID + ":" + connectorName
}
