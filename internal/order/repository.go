package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrPinCollision means the generated tracking pin is already taken;
	// the caller regenerates and retries.
	ErrPinCollision      = errors.New("tracking pin already in use")
	ErrDuplicateOrderNum = errors.New("order number already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderByTrackingPin(ctx context.Context, pin string) (*Order, error)
	ListOrdersByEmail(ctx context.Context, email string) ([]*Order, error)
	ListOpenOrders(ctx context.Context) ([]*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus, at time.Time) error
	Close() error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

const orderColumns = `id, order_number, tracking_pin, customer_email, status, payment_status,
	items, subtotal, shipping_cost, discount, total, created_at, updated_at, shipped_at, delivered_at`

func (r *Repository) CreateOrder(ctx context.Context, order *Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (id, order_number, tracking_pin, customer_email, status, payment_status,
	            items, subtotal, shipping_cost, discount, total, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.TrackingPin,
		order.CustomerEmail,
		order.Status,
		order.PaymentStatus,
		itemsJSON,
		order.Subtotal,
		order.ShippingCost,
		order.Discount,
		order.Total)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "orders_tracking_pin_key":
				return ErrPinCollision
			case "orders_order_number_key":
				return ErrDuplicateOrderNum
			}
			return fmt.Errorf("unique violation on %s: %w", pqErr.Constraint, insertErr)
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *Repository) scanOrder(row interface {
	Scan(dest ...interface{}) error
}) (*Order, error) {
	var order Order
	var itemsJSON []byte
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.TrackingPin,
		&order.CustomerEmail,
		&order.Status,
		&order.PaymentStatus,
		&itemsJSON,
		&order.Subtotal,
		&order.ShippingCost,
		&order.Discount,
		&order.Total,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.ShippedAt,
		&order.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

// GetOrderByTrackingPin is the anonymous lookup path: exact match on the
// six-digit pin.
func (r *Repository) GetOrderByTrackingPin(ctx context.Context, pin string) (*Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE tracking_pin = $1`, orderColumns)

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, pin))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by tracking pin: %w", err)
	}
	return order, nil
}

// ListOrdersByEmail returns the customer's orders newest first. No orders
// is an empty slice, not an error.
func (r *Repository) ListOrdersByEmail(ctx context.Context, email string) ([]*Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE customer_email = $1 ORDER BY created_at DESC`, orderColumns)
	return r.queryOrders(ctx, query, email)
}

// ListOpenOrders returns every non-terminal order, used to re-seed the
// status projection after an event-feed reconnect.
func (r *Repository) ListOpenOrders(ctx context.Context) ([]*Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE status NOT IN ($1, $2) ORDER BY created_at DESC`, orderColumns)
	return r.queryOrders(ctx, query, StatusDelivered, StatusCancelled)
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error {
	query := `UPDATE orders SET status = $2, updated_at = $3,
	            shipped_at = CASE WHEN $2 = 'shipped' THEN $3 ELSE shipped_at END,
	            delivered_at = CASE WHEN $2 = 'delivered' THEN $3 ELSE delivered_at END
	          WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus, at time.Time) error {
	query := `UPDATE orders SET payment_status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
