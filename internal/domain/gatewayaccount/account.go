package gatewayaccount

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Credential map keys shared across providers.
const (
	CredentialMerchantID    = "merchant_id"
	CredentialUsername      = "username"
	CredentialPassword      = "password"
	CredentialShaPassphrase = "sha_in_passphrase"
	CredentialStripeAccount = "stripe_account_id"
	CredentialWebhookSecret = "webhook_secret"
)

// Environment tags a gateway account as test or live.
type Environment string

const (
	EnvironmentTest Environment = "test"
	EnvironmentLive Environment = "live"
)

// Account holds a merchant's configuration for one provider. Credentials are
// opaque to the core; adapters pick out the keys they need.
type Account struct {
	ID           uuid.UUID
	ProviderName string
	Credentials  map[string]string
	Environment  Environment
	CreatedAt    time.Time
}

// Repository is the persistence port for gateway accounts.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
}
