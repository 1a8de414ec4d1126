package merchant_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/store/memory"
)

func TestSaveProfileGeneratesSecret(t *testing.T) {
	svc := merchant.NewService(memory.New(), nil)

	p, err := svc.SaveProfile(context.Background(), merchant.ProfileInput{
		MerchantID: "mrc_1",
		ProfileID:  "prf_1",
		WebhookURL: "https://merchant.example/hooks",
	})
	if err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	if !strings.HasPrefix(p.Secret, "whsec_") {
		t.Errorf("generated secret = %q, want whsec_ prefix", p.Secret)
	}
}

func TestSaveProfileKeepsProvidedSecret(t *testing.T) {
	svc := merchant.NewService(memory.New(), nil)

	p, err := svc.SaveProfile(context.Background(), merchant.ProfileInput{
		MerchantID: "mrc_1",
		ProfileID:  "prf_1",
		WebhookURL: "https://merchant.example/hooks",
		Secret:     "whsec_keepme",
	})
	if err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	if p.Secret != "whsec_keepme" {
		t.Errorf("secret = %q, want whsec_keepme", p.Secret)
	}
}

func TestSaveProfileNoURLNoSecret(t *testing.T) {
	svc := merchant.NewService(memory.New(), nil)

	p, err := svc.SaveProfile(context.Background(), merchant.ProfileInput{
		MerchantID: "mrc_1",
		ProfileID:  "prf_1",
	})
	if err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	if p.Secret != "" {
		t.Error("profiles without a webhook URL should not get a secret")
	}
}

func TestSaveProfileValidation(t *testing.T) {
	svc := merchant.NewService(memory.New(), nil)

	tests := []merchant.ProfileInput{
		{ProfileID: "prf_1"},
		{MerchantID: "mrc_1"},
		{MerchantID: "mrc_1", ProfileID: "prf_1", WebhookURL: "not a url"},
	}
	for _, in := range tests {
		_, err := svc.SaveProfile(context.Background(), in)
		var verr *merchant.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("SaveProfile(%+v) error = %v, want ValidationError", in, err)
		}
	}
}

func TestRotateSecret(t *testing.T) {
	st := memory.New()
	svc := merchant.NewService(st, nil)

	p, err := svc.SaveProfile(context.Background(), merchant.ProfileInput{
		MerchantID: "mrc_1",
		ProfileID:  "prf_1",
		WebhookURL: "https://merchant.example/hooks",
	})
	if err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	rotated, err := svc.RotateSecret(context.Background(), "mrc_1", "prf_1")
	if err != nil {
		t.Fatalf("RotateSecret() error = %v", err)
	}
	if rotated == p.Secret {
		t.Error("rotated secret should differ from the original")
	}

	stored, _ := svc.GetProfile(context.Background(), "mrc_1", "prf_1")
	if stored.Secret != rotated {
		t.Error("rotated secret should be persisted")
	}
}

func TestRotateSecretUnknownProfile(t *testing.T) {
	svc := merchant.NewService(memory.New(), nil)

	_, err := svc.RotateSecret(context.Background(), "mrc_1", "prf_nope")
	if !errors.Is(err, merchant.ErrProfileNotFound) {
		t.Errorf("RotateSecret() error = %v, want ErrProfileNotFound", err)
	}
}

func TestResolveAccount(t *testing.T) {
	st := memory.New()
	svc := merchant.NewService(st, nil)

	saved, err := svc.SaveAccount(context.Background(), &merchant.ConnectorAccount{
		AccountID:     "mca_1",
		MerchantID:    "mrc_1",
		ConnectorName: "adyen",
	})
	if err != nil {
		t.Fatalf("SaveAccount() error = %v", err)
	}

	// Explicit account id.
	byID, err := svc.ResolveAccount(context.Background(), "mrc_1", "adyen", "mca_1")
	if err != nil {
		t.Fatalf("ResolveAccount() by id error = %v", err)
	}
	if byID.AccountID != saved.AccountID {
		t.Errorf("resolved account = %q, want %q", byID.AccountID, saved.AccountID)
	}

	// Empty account id falls back to the connector lookup.
	byConn, err := svc.ResolveAccount(context.Background(), "mrc_1", "adyen", "")
	if err != nil {
		t.Fatalf("ResolveAccount() by connector error = %v", err)
	}
	if byConn.AccountID != saved.AccountID {
		t.Errorf("resolved account = %q, want %q", byConn.AccountID, saved.AccountID)
	}

	if _, err := svc.ResolveAccount(context.Background(), "mrc_1", "stripe", ""); !errors.Is(err, merchant.ErrAccountNotFound) {
		t.Errorf("ResolveAccount() for unknown connector error = %v, want ErrAccountNotFound", err)
	}
}

func TestSaveAccountValidation(t *testing.T) {
	svc := merchant.NewService(memory.New(), nil)

	_, err := svc.SaveAccount(context.Background(), &merchant.ConnectorAccount{
		MerchantID:    "mrc_1",
		ConnectorName: "adyen",
	})
	var verr *merchant.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("SaveAccount() error = %v, want ValidationError", err)
	}
}
