package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/fulfillment/repository/inventory")

// ErrNotFound is returned when a product has no inventory record.
var ErrNotFound = errors.New("inventory record not found")

// Repository stores per-product inventory and its adjustment log.
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

// GetByProduct loads the record of a product.
func (r *Repository) GetByProduct(ctx context.Context, productID int64) (*entity.InventoryRecord, error) {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.GetByProduct", trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	record := new(entity.InventoryRecord)
	err := database.Executor(ctx, r.reader).NewSelect().
		Model(record).
		Where("product_id = ?", productID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return record, nil
}

// Create inserts a new inventory record.
func (r *Repository) Create(ctx context.Context, record *entity.InventoryRecord) error {
	_, err := database.Executor(ctx, r.writer).NewInsert().Model(record).Exec(ctx)
	return err
}

// CompareAndSwap persists quantities and thresholds if the version is unchanged since read.
func (r *Repository) CompareAndSwap(ctx context.Context, record *entity.InventoryRecord) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.CompareAndSwap", trace.WithAttributes(
		attribute.Int64("product.id", record.ProductID),
		attribute.Int64("inventory.version", record.Version),
	))
	defer span.End()

	prev := record.Version
	record.Version = prev + 1
	res, err := database.Executor(ctx, r.writer).NewUpdate().
		Model(record).
		Column("stock_quantity", "waste_amount", "waste_reason", "min_stock_level", "low_stock_threshold", "updated_at", "version").
		WherePK().
		Where("version = ?", prev).
		Exec(ctx)
	if err != nil {
		record.Version = prev
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		record.Version = prev
		return false, err
	}
	if affected == 0 {
		record.Version = prev
		return false, nil
	}
	return true, nil
}

// AppendAdjustment records one stock or waste change.
func (r *Repository) AppendAdjustment(ctx context.Context, adj *entity.InventoryAdjustment) error {
	_, err := database.Executor(ctx, r.writer).NewInsert().Model(adj).Exec(ctx)
	return err
}

// Adjustments lists the change log of a product, newest first.
func (r *Repository) Adjustments(ctx context.Context, productID int64, limit int) ([]entity.InventoryAdjustment, error) {
	var adjs []entity.InventoryAdjustment
	q := database.Executor(ctx, r.reader).NewSelect().
		Model(&adjs).
		Where("product_id = ?", productID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return adjs, nil
}

// List returns inventory records ordered by product, starting after afterProductID.
func (r *Repository) List(ctx context.Context, afterProductID int64, limit int) ([]entity.InventoryRecord, error) {
	var records []entity.InventoryRecord
	q := database.Executor(ctx, r.reader).NewSelect().
		Model(&records).
		Where("product_id > ?", afterProductID).
		Order("product_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}
