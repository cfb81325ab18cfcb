package verification

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/fulfillment/repository/verification")

// ErrNotFound is returned when no matching code exists.
var ErrNotFound = errors.New("verification code not found")

// Repository stores delivery verification codes.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Writer exposes the primary connection for transaction scoping.
func (r *Repository) Writer() *bun.DB {
	return r.writer
}

// Current loads the live code of an order.
func (r *Repository) Current(ctx context.Context, orderID int64) (*entity.VerificationCode, error) {
	ctx, span := repoTracer.Start(ctx, "VerificationRepository.Current", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	code := new(entity.VerificationCode)
	err := database.Executor(ctx, r.reader).NewSelect().
		Model(code).
		Where("order_id = ?", orderID).
		Where("is_current = ?", true).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return code, nil
}

// GetByID loads a code by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.VerificationCode, error) {
	code := new(entity.VerificationCode)
	err := database.Executor(ctx, r.reader).NewSelect().Model(code).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return code, err
}

// Create inserts a new code.
func (r *Repository) Create(ctx context.Context, code *entity.VerificationCode) error {
	ctx, span := repoTracer.Start(ctx, "VerificationRepository.Create", trace.WithAttributes(attribute.Int64("order.id", code.OrderID)))
	defer span.End()

	_, err := database.Executor(ctx, r.writer).NewInsert().Model(code).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// Supersede retires a live code so a new one can be issued. The row is kept.
func (r *Repository) Supersede(ctx context.Context, id int64, at time.Time) error {
	_, err := database.Executor(ctx, r.writer).NewUpdate().
		Model((*entity.VerificationCode)(nil)).
		Set("is_current = NULL").
		Set("superseded_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// RecordFailure persists the code's attempt counter and failure reasons while the
// stored counter still equals previous and the code is unverified. It reports
// false when another attempt was recorded first.
func (r *Repository) RecordFailure(ctx context.Context, code *entity.VerificationCode, previous int) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "VerificationRepository.RecordFailure", trace.WithAttributes(
		attribute.Int64("code.id", code.ID),
		attribute.Int("code.attempts", code.DeliveryAttempts),
	))
	defer span.End()

	res, err := database.Executor(ctx, r.writer).NewUpdate().
		Model(code).
		Column("delivery_attempts", "failure_reasons").
		WherePK().
		Where("delivery_attempts = ?", previous).
		Where("is_verified = ?", false).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkVerified flips the verified flag once. It reports false if the code was already verified.
func (r *Repository) MarkVerified(ctx context.Context, code *entity.VerificationCode) (bool, error) {
	res, err := database.Executor(ctx, r.writer).NewUpdate().
		Model(code).
		Column("is_verified", "verified_at", "verified_by", "verified_location").
		WherePK().
		Where("is_verified = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateSMS persists the dispatch status of a code.
func (r *Repository) UpdateSMS(ctx context.Context, code *entity.VerificationCode) error {
	_, err := database.Executor(ctx, r.writer).NewUpdate().
		Model(code).
		Column("sms_status", "sms_failure", "sms_attempts").
		WherePK().
		Exec(ctx)
	return err
}

// ListForOrder returns every code issued for an order, newest first.
func (r *Repository) ListForOrder(ctx context.Context, orderID int64) ([]entity.VerificationCode, error) {
	var out []entity.VerificationCode
	err := database.Executor(ctx, r.reader).NewSelect().
		Model(&out).
		Where("order_id = ?", orderID).
		Order("id DESC").
		Scan(ctx)
	return out, err
}
