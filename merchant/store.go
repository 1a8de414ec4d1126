package merchant

import (
	"context"
	"errors"
)

// Store errors.
var (
	ErrProfileNotFound = errors.New("merchant: profile not found")
	ErrAccountNotFound = errors.New("merchant: connector account not found")
)

// Store persists merchant profiles and connector accounts.
type Store interface {
	// GetProfile returns the profile for a merchant/profile pair.
	GetProfile(ctx context.Context, merchantID, profileID string) (*Profile, error)

	// UpsertProfile creates or replaces a profile.
	UpsertProfile(ctx context.Context, p *Profile) error

	// GetAccount returns a connector account by its id.
	GetAccount(ctx context.Context, merchantID, accountID string) (*ConnectorAccount, error)

	// FindAccountByConnector returns the merchant's account with the named
	// connector. Used when a webhook route carries no account id.
	FindAccountByConnector(ctx context.Context, merchantID, connectorName string) (*ConnectorAccount, error)

	// UpsertAccount creates or replaces a connector account.
	UpsertAccount(ctx context.Context, a *ConnectorAccount) error
}
