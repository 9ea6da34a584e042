package testutil

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
)

// NewTestAccount builds a gateway account for the given provider with empty
// credentials.
func NewTestAccount(providerName string) *gatewayaccount.Account {
	return &gatewayaccount.Account{
		ID:           uuid.New(),
		ProviderName: providerName,
		Credentials:  map[string]string{},
		Environment:  gatewayaccount.EnvironmentTest,
		CreatedAt:    time.Now(),
	}
}

// NewTestCharge builds a charge in the given status against the account.
func NewTestCharge(account *gatewayaccount.Account, amount int64, status charge.Status) *charge.Charge {
	now := time.Now()
	return &charge.Charge{
		ID:               uuid.New(),
		ExternalID:       strings.ReplaceAll(uuid.New().String(), "-", ""),
		Amount:           amount,
		Status:           status,
		ProviderName:     account.ProviderName,
		GatewayAccountID: account.ID,
		Description:      "test payment",
		Reference:        "ref-1",
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NewTestRefund builds a refund in the given status against the charge.
func NewTestRefund(c *charge.Charge, amount int64, status refund.Status) *refund.Refund {
	now := time.Now()
	return &refund.Refund{
		ID:         uuid.New(),
		ExternalID: strings.ReplaceAll(uuid.New().String(), "-", ""),
		ChargeID:   c.ID,
		Amount:     amount,
		Status:     status,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
