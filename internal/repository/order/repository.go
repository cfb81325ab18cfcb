package order

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

var repoTracer = otel.Tracer("github.com/Additional-Code/fulfillment/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for orders and their audit trail.
// Calls made with a transactional context run on that transaction.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Writer exposes the primary connection for transaction scoping.
func (r *Repository) Writer() *bun.DB {
	return r.writer
}

// Create persists a new order and its items.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.customer_order_id", order.CustomerOrderID)))
	defer span.End()

	db := database.Executor(ctx, r.writer)
	if _, err := db.NewInsert().Model(order).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	if len(order.Items) == 0 {
		return nil
	}
	for _, item := range order.Items {
		item.OrderID = order.ID
	}
	if _, err := db.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert items failed")
		return err
	}
	return nil
}

// ExistsByCustomerOrderID reports whether the customer-facing id is already registered.
func (r *Repository) ExistsByCustomerOrderID(ctx context.Context, customerOrderID string) (bool, error) {
	return database.Executor(ctx, r.reader).NewSelect().
		Model((*entity.Order)(nil)).
		Where("customer_order_id = ?", customerOrderID).
		Exists(ctx)
}

// GetByID fetches an order and its items by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := database.Executor(ctx, r.reader).NewSelect().
		Model(order).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("oi.id ASC")
		}).
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// CompareAndSetStatus writes the order's status, the listed columns and the
// next version only while the stored status still equals expected. It reports
// false when another writer moved the order first.
func (r *Repository) CompareAndSetStatus(ctx context.Context, order *entity.Order, expected entity.Status, columns ...string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CompareAndSetStatus", trace.WithAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("order.expected_status", string(expected)),
		attribute.String("order.target_status", string(order.Status)),
	))
	defer span.End()

	prev := order.Version
	order.Version = prev + 1
	cols := append([]string{"status", "updated_at", "version"}, columns...)
	res, err := database.Executor(ctx, r.writer).NewUpdate().
		Model(order).
		Column(cols...).
		WherePK().
		Where("status = ?", expected).
		Exec(ctx)
	if err != nil {
		order.Version = prev
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		order.Version = prev
		return false, err
	}
	if affected == 0 {
		order.Version = prev
		span.SetStatus(codes.Error, "stale status")
		return false, nil
	}
	return true, nil
}

// AppendHistory inserts one audit entry. History rows are never updated.
func (r *Repository) AppendHistory(ctx context.Context, entry *entity.StatusHistoryEntry) error {
	_, err := database.Executor(ctx, r.writer).NewInsert().Model(entry).Exec(ctx)
	return err
}

// History lists the audit trail of an order, oldest first.
func (r *Repository) History(ctx context.Context, orderID int64) ([]entity.StatusHistoryEntry, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.History", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var entries []entity.StatusHistoryEntry
	err := database.Executor(ctx, r.reader).NewSelect().
		Model(&entries).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entries, nil
}

// ListCreatedBefore returns up to limit orders in the given statuses created before cutoff, oldest first.
func (r *Repository) ListCreatedBefore(ctx context.Context, statuses []entity.Status, cutoff time.Time, limit int) ([]entity.Order, error) {
	var orders []entity.Order
	q := database.Executor(ctx, r.reader).NewSelect().
		Model(&orders).
		Where("o.status IN (?)", bun.In(statuses)).
		Where("o.created_at < ?", cutoff).
		Order("o.created_at ASC", "o.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}

// ReservedQuantities returns the item quantities of a product held by orders in the given statuses.
func (r *Repository) ReservedQuantities(ctx context.Context, productID int64, statuses []entity.Status) ([]int64, error) {
	var quantities []int64
	err := database.Executor(ctx, r.reader).NewSelect().
		Model((*entity.OrderItem)(nil)).
		Column("oi.quantity").
		Join("JOIN orders AS o ON o.id = oi.order_id").
		Where("oi.product_id = ?", productID).
		Where("o.status IN (?)", bun.In(statuses)).
		Scan(ctx, &quantities)
	if err != nil {
		return nil, err
	}
	return quantities, nil
}
