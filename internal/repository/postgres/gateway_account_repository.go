package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/gatewayaccount"
)

// GatewayAccountRepository implements gatewayaccount.Repository using
// PostgreSQL. Credentials are stored as a JSONB blob; the core never looks
// inside them.
type GatewayAccountRepository struct {
	pool *pgxpool.Pool
}

// NewGatewayAccountRepository creates a new GatewayAccountRepository.
func NewGatewayAccountRepository(pool *pgxpool.Pool) *GatewayAccountRepository {
	return &GatewayAccountRepository{pool: pool}
}

func (r *GatewayAccountRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// FindByID retrieves a gateway account.
func (r *GatewayAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*gatewayaccount.Account, error) {
	a := &gatewayaccount.Account{}
	var (
		environment string
		credentials []byte
	)
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, provider_name, credentials, environment, created_at
		 FROM gateway_accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.ProviderName, &credentials, &environment, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrGatewayAccountNotFound
		}
		return nil, fmt.Errorf("scan gateway account: %w", err)
	}

	a.Environment = gatewayaccount.Environment(environment)
	a.Credentials = make(map[string]string)
	if len(credentials) > 0 {
		if err := json.Unmarshal(credentials, &a.Credentials); err != nil {
			return nil, fmt.Errorf("unmarshal account credentials: %w", err)
		}
	}
	return a, nil
}
