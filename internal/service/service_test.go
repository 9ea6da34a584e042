package service_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
	"github.com/mohbadar/pay-connector/internal/executor"
	"github.com/mohbadar/pay-connector/internal/gateway"
	"github.com/mohbadar/pay-connector/internal/queue"
	"github.com/mohbadar/pay-connector/internal/service"
	"github.com/mohbadar/pay-connector/internal/testutil"
)

// env wires the service layer against in-memory repositories and a stub
// provider, mirroring how main wires it against the real thing.
type env struct {
	charges  *testutil.MockChargeRepository
	refunds  *testutil.MockRefundRepository
	accounts *testutil.MockGatewayAccountRepository
	provider *testutil.StubProvider
	registry *gateway.Registry
	queue    *queue.Queue
	pipeline *service.Pipeline
	account  *gatewayaccount.Account
}

func newEnv(t *testing.T) *env {
	t.Helper()
	provider := &testutil.StubProvider{ProviderName: "stub"}
	e := &env{
		charges:  testutil.NewMockChargeRepository(),
		refunds:  testutil.NewMockRefundRepository(),
		accounts: testutil.NewMockGatewayAccountRepository(),
		provider: provider,
		registry: gateway.NewRegistry(provider),
		queue:    queue.NewQueue(nil),
		account:  testutil.NewTestAccount("stub"),
	}
	e.accounts.Seed(e.account)

	exec := executor.New(4, 16, 2*time.Second, zerolog.Nop(), nil)
	e.pipeline = service.NewPipeline(e.charges, e.accounts, e.registry, testutil.NopTxManager{}, e.queue, exec, zerolog.Nop(), nil)
	return e
}

// seedCharge stores a charge in the given status against the env's account.
func (e *env) seedCharge(amount int64, status charge.Status) *charge.Charge {
	c := testutil.NewTestCharge(e.account, amount, status)
	e.charges.Seed(c)
	return c
}

func validCard() gateway.Card {
	return gateway.Card{
		Number:     "4242424242424242",
		Holder:     "J Doe",
		CVC:        "123",
		ExpiryDate: "01/28",
		Brand:      "visa",
	}
}
