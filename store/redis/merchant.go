package redis

import (
	"context"
	"fmt"

	"github.com/fluxpay/webhooks/merchant"
)

// GetProfile returns a merchant profile.
func (s *Store) GetProfile(ctx context.Context, merchantID, profileID string) (*merchant.Profile, error) {
	var p merchant.Profile
	if err := s.getEntity(ctx, profileEntityKey(merchantID, profileID), &p); err != nil {
		if isRedisNil(err) {
			return nil, merchant.ErrProfileNotFound
		}
		return nil, fmt.Errorf("webhooks/redis: get profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile creates or replaces a profile.
func (s *Store) UpsertProfile(ctx context.Context, p *merchant.Profile) error {
	if err := s.setEntity(ctx, profileEntityKey(p.MerchantID, p.ProfileID), p); err != nil {
		return fmt.Errorf("webhooks/redis: upsert profile: %w", err)
	}
	return nil
}

// GetAccount returns a connector account by id.
func (s *Store) GetAccount(ctx context.Context, merchantID, accountID string) (*merchant.ConnectorAccount, error) {
	var a merchant.ConnectorAccount
	if err := s.getEntity(ctx, accountEntityKey(merchantID, accountID), &a); err != nil {
		if isRedisNil(err) {
			return nil, merchant.ErrAccountNotFound
		}
		return nil, fmt.Errorf("webhooks/redis: get account: %w", err)
	}
	return &a, nil
}

// FindAccountByConnector resolves the merchant's account with a connector
// through the (merchant, connector) index.
func (s *Store) FindAccountByConnector(ctx context.Context, merchantID, connectorName string) (*merchant.ConnectorAccount, error) {
	accountID, err := s.rdb.Get(ctx, accountConnectorKey(merchantID, connectorName)).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, merchant.ErrAccountNotFound
		}
		return nil, fmt.Errorf("webhooks/redis: find account by connector: %w", err)
	}
	return s.GetAccount(ctx, merchantID, accountID)
}

// UpsertAccount creates or replaces a connector account and its connector
// index entry.
func (s *Store) UpsertAccount(ctx context.Context, a *merchant.ConnectorAccount) error {
	if err := s.setEntity(ctx, accountEntityKey(a.MerchantID, a.AccountID), a); err != nil {
		return fmt.Errorf("webhooks/redis: upsert account: %w", err)
	}

	err := s.rdb.Set(ctx, accountConnectorKey(a.MerchantID, a.ConnectorName), a.AccountID, 0).Err()
	if err != nil {
		return fmt.Errorf("webhooks/redis: index account: %w", err)
	}
	return nil
}
