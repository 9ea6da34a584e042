package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohbadar/pay-connector/internal/domain/charge"
	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
)

const chargeColumns = `id, external_id, amount, corporate_surcharge, status, provider_name,
	        gateway_transaction_id, gateway_account_id, description, reference,
	        delayed_capture, version, created_at, updated_at`

// ChargeRepository implements charge.Repository using PostgreSQL.
type ChargeRepository struct {
	pool *pgxpool.Pool
}

// NewChargeRepository creates a new ChargeRepository.
func NewChargeRepository(pool *pgxpool.Pool) *ChargeRepository {
	return &ChargeRepository{pool: pool}
}

func (r *ChargeRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new charge.
func (r *ChargeRepository) Create(ctx context.Context, c *charge.Charge) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO charges
		 (id, external_id, amount, corporate_surcharge, status, provider_name,
		  gateway_transaction_id, gateway_account_id, description, reference,
		  delayed_capture, version, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		c.ID, c.ExternalID, c.Amount, c.CorporateSurcharge, string(c.Status), c.ProviderName,
		c.GatewayTransactionID, c.GatewayAccountID, c.Description, c.Reference,
		c.DelayedCapture, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert charge: %w", err)
	}
	return nil
}

// FindByID retrieves a charge by its internal id.
func (r *ChargeRepository) FindByID(ctx context.Context, id uuid.UUID) (*charge.Charge, error) {
	return r.scanCharge(r.db(ctx).QueryRow(ctx,
		`SELECT `+chargeColumns+` FROM charges WHERE id = $1`, id))
}

// FindByExternalID retrieves a charge by its external id.
func (r *ChargeRepository) FindByExternalID(ctx context.Context, externalID string) (*charge.Charge, error) {
	return r.scanCharge(r.db(ctx).QueryRow(ctx,
		`SELECT `+chargeColumns+` FROM charges WHERE external_id = $1`, externalID))
}

// FindByGatewayTransactionID resolves the charge a gateway notification refers to.
func (r *ChargeRepository) FindByGatewayTransactionID(ctx context.Context, providerName, transactionID string) (*charge.Charge, error) {
	return r.scanCharge(r.db(ctx).QueryRow(ctx,
		`SELECT `+chargeColumns+` FROM charges
		 WHERE provider_name = $1 AND gateway_transaction_id = $2`,
		providerName, transactionID))
}

// UpdateWithVersion persists the charge only if the stored version still
// matches. Zero rows affected means a concurrent writer got there first.
func (r *ChargeRepository) UpdateWithVersion(ctx context.Context, c *charge.Charge) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE charges SET
		  status=$1, gateway_transaction_id=$2, corporate_surcharge=$3,
		  version=version+1, updated_at=$4
		 WHERE id=$5 AND version=$6`,
		string(c.Status), c.GatewayTransactionID, c.CorporateSurcharge,
		c.UpdatedAt, c.ID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("update charge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrConflict
	}
	c.Version++
	return nil
}

// FindByStatus pages through charges currently in the given status, oldest
// first.
func (r *ChargeRepository) FindByStatus(ctx context.Context, status charge.Status, limit, offset int) ([]*charge.Charge, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+chargeColumns+` FROM charges
		 WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list charges by status: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// FindCreatedBefore returns charges in any of the given statuses created
// before the cutoff.
func (r *ChargeRepository) FindCreatedBefore(ctx context.Context, statuses []charge.Status, cutoff time.Time, limit int) ([]*charge.Charge, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+chargeColumns+` FROM charges
		 WHERE status = ANY($1) AND created_at < $2
		 ORDER BY created_at ASC LIMIT $3`,
		names, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list expirable charges: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// AppendEvent inserts one status history row.
func (r *ChargeRepository) AppendEvent(ctx context.Context, e *charge.Event) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO charge_events (id, charge_id, status, created_at)
		 VALUES ($1, $2, $3, $4)`,
		e.ID, e.ChargeID, string(e.Status), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert charge event: %w", err)
	}
	return nil
}

// Events retrieves the charge's status history, oldest first.
func (r *ChargeRepository) Events(ctx context.Context, chargeID uuid.UUID) ([]*charge.Event, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, charge_id, status, created_at
		 FROM charge_events WHERE charge_id = $1 ORDER BY created_at ASC`, chargeID)
	if err != nil {
		return nil, fmt.Errorf("list charge events: %w", err)
	}
	defer rows.Close()

	var events []*charge.Event
	for rows.Next() {
		e := &charge.Event{}
		var status string
		if err := rows.Scan(&e.ID, &e.ChargeID, &status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan charge event: %w", err)
		}
		e.Status = charge.Status(status)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *ChargeRepository) collect(rows pgx.Rows) ([]*charge.Charge, error) {
	var charges []*charge.Charge
	for rows.Next() {
		c, err := r.scanCharge(rows)
		if err != nil {
			return nil, err
		}
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

// scanCharge scans a charge from any source implementing the scanner interface.
func (r *ChargeRepository) scanCharge(s scanner) (*charge.Charge, error) {
	c := &charge.Charge{}
	var status string
	err := s.Scan(
		&c.ID, &c.ExternalID, &c.Amount, &c.CorporateSurcharge, &status, &c.ProviderName,
		&c.GatewayTransactionID, &c.GatewayAccountID, &c.Description, &c.Reference,
		&c.DelayedCapture, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrChargeNotFound
		}
		return nil, fmt.Errorf("scan charge: %w", err)
	}
	c.Status = charge.Status(status)
	return c, nil
}
