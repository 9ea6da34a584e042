package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/mohbadar/pay-connector/internal/domain/errors"
	"github.com/mohbadar/pay-connector/internal/domain/refund"
)

const refundColumns = `id, external_id, charge_id, amount, status,
	        gateway_transaction_id, version, created_at, updated_at`

// RefundRepository implements refund.Repository using PostgreSQL.
type RefundRepository struct {
	pool *pgxpool.Pool
}

// NewRefundRepository creates a new RefundRepository.
func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

func (r *RefundRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new refund.
func (r *RefundRepository) Create(ctx context.Context, rf *refund.Refund) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO refunds
		 (id, external_id, charge_id, amount, status,
		  gateway_transaction_id, version, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rf.ID, rf.ExternalID, rf.ChargeID, rf.Amount, string(rf.Status),
		rf.GatewayTransactionID, rf.Version, rf.CreatedAt, rf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// FindByExternalID retrieves a refund by its external id.
func (r *RefundRepository) FindByExternalID(ctx context.Context, externalID string) (*refund.Refund, error) {
	return r.scanRefund(r.db(ctx).QueryRow(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE external_id = $1`, externalID))
}

// FindByGatewayTransactionID resolves the refund a gateway notification
// refers to.
func (r *RefundRepository) FindByGatewayTransactionID(ctx context.Context, transactionID string) (*refund.Refund, error) {
	return r.scanRefund(r.db(ctx).QueryRow(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE gateway_transaction_id = $1`, transactionID))
}

// ListByChargeID returns every refund ever attempted against the charge,
// oldest first.
func (r *RefundRepository) ListByChargeID(ctx context.Context, chargeID uuid.UUID) ([]*refund.Refund, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+refundColumns+` FROM refunds
		 WHERE charge_id = $1 ORDER BY created_at ASC`, chargeID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*refund.Refund
	for rows.Next() {
		rf, err := r.scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	return refunds, rows.Err()
}

// UpdateWithVersion persists the refund only if the stored version still
// matches. Zero rows affected means a concurrent writer got there first.
func (r *RefundRepository) UpdateWithVersion(ctx context.Context, rf *refund.Refund) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE refunds SET
		  status=$1, gateway_transaction_id=$2, version=version+1, updated_at=$3
		 WHERE id=$4 AND version=$5`,
		string(rf.Status), rf.GatewayTransactionID, rf.UpdatedAt, rf.ID, rf.Version,
	)
	if err != nil {
		return fmt.Errorf("update refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrConflict
	}
	rf.Version++
	return nil
}

// scanRefund scans a refund from any source implementing the scanner interface.
func (r *RefundRepository) scanRefund(s scanner) (*refund.Refund, error) {
	rf := &refund.Refund{}
	var status string
	err := s.Scan(
		&rf.ID, &rf.ExternalID, &rf.ChargeID, &rf.Amount, &status,
		&rf.GatewayTransactionID, &rf.Version, &rf.CreatedAt, &rf.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrRefundNotFound
		}
		return nil, fmt.Errorf("scan refund: %w", err)
	}
	rf.Status = refund.Status(status)
	return rf, nil
}
