package merchant

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/fluxpay/webhooks/internal/entity"
	"github.com/fluxpay/webhooks/signature"
)

// Service provides profile and connector-account management operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new merchant service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// ProfileInput is the mutable portion of a profile.
type ProfileInput struct {
	MerchantID         string
	ProfileID          string
	WebhookURL         string
	Secret             string
	CustomHeaders      map[string]string
	DisabledEventTypes []string
	RetryBudget        int
	RateLimit          int
	PayloadFormat      string
}

// SaveProfile validates and stores a profile. A missing secret is generated
// when a webhook URL is configured.
func (svc *Service) SaveProfile(ctx context.Context, in ProfileInput) (*Profile, error) {
	if in.MerchantID == "" {
		return nil, &ValidationError{Field: "merchant_id", Message: "required"}
	}
	if in.ProfileID == "" {
		return nil, &ValidationError{Field: "profile_id", Message: "required"}
	}
	if in.WebhookURL != "" {
		if _, err := url.ParseRequestURI(in.WebhookURL); err != nil {
			return nil, &ValidationError{Field: "webhook_url", Message: "invalid URL"}
		}
	}

	secret := in.Secret
	if secret == "" && in.WebhookURL != "" {
		secret = signature.GenerateSecret()
	}

	p := &Profile{
		Entity:             entity.New(),
		MerchantID:         in.MerchantID,
		ProfileID:          in.ProfileID,
		WebhookURL:         in.WebhookURL,
		Secret:             secret,
		CustomHeaders:      in.CustomHeaders,
		DisabledEventTypes: in.DisabledEventTypes,
		RetryBudget:        in.RetryBudget,
		RateLimit:          in.RateLimit,
		PayloadFormat:      in.PayloadFormat,
	}

	if err := svc.store.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// GetProfile returns a profile.
func (svc *Service) GetProfile(ctx context.Context, merchantID, profileID string) (*Profile, error) {
	return svc.store.GetProfile(ctx, merchantID, profileID)
}

// RotateSecret generates a new outbound signing secret for a profile.
func (svc *Service) RotateSecret(ctx context.Context, merchantID, profileID string) (string, error) {
	p, err := svc.store.GetProfile(ctx, merchantID, profileID)
	if err != nil {
		return "", err
	}

	newSecret := signature.GenerateSecret()

	p.Secret = newSecret
	if err := svc.store.UpsertProfile(ctx, p); err != nil {
		return "", err
	}

	return newSecret, nil
}

// SaveAccount validates and stores a connector account.
func (svc *Service) SaveAccount(ctx context.Context, a *ConnectorAccount) (*ConnectorAccount, error) {
	if a.AccountID == "" {
		return nil, &ValidationError{Field: "account_id", Message: "required"}
	}
	if a.MerchantID == "" {
		return nil, &ValidationError{Field: "merchant_id", Message: "required"}
	}
	if a.ConnectorName == "" {
		return nil, &ValidationError{Field: "connector_name", Message: "required"}
	}

	a.Entity = entity.New()
	if err := svc.store.UpsertAccount(ctx, a); err != nil {
		return nil, err
	}

	return a, nil
}

// ResolveAccount finds the connector account for an inbound route. When
// accountID is empty the merchant's sole account with the connector is
// used.
func (svc *Service) ResolveAccount(ctx context.Context, merchantID, connectorName, accountID string) (*ConnectorAccount, error) {
	if accountID != "" {
		return svc.store.GetAccount(ctx, merchantID, accountID)
	}
	return svc.store.FindAccountByConnector(ctx, merchantID, connectorName)
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "merchant validation: " + e.Field + ": " + e.Message
}
