package container

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warelane/warelane/internal/shared"
)

// Repository persists containers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside one unit of work.
type TxRepository interface {
	NextSequence(ctx context.Context, prefix string) (int64, error)
	InsertContainer(ctx context.Context, c Container) (int64, error)
	InsertContents(ctx context.Context, containerID int64, contents []ContentLine) error
	GetByBarcodeForUpdate(ctx context.Context, barcode string) (Container, error)
	MarkOpened(ctx context.Context, containerID int64, actor string, at time.Time) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the transactional operations to an externally owned
// pgx.Tx.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// GetByBarcode loads a container with its contents.
func (r *Repository) GetByBarcode(ctx context.Context, barcode string) (Container, error) {
	var c Container
	var openedAt *time.Time
	err := r.pool.QueryRow(ctx, `SELECT id, barcode, container_type, status, warehouse_id, created_by, created_at, COALESCE(opened_by, ''), opened_at
FROM containers WHERE barcode=$1`, barcode).
		Scan(&c.ID, &c.Barcode, &c.Type, &c.Status, &c.Warehouse, &c.CreatedBy, &c.CreatedAt, &c.OpenedBy, &openedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Container{}, shared.NewNotFound("container", barcode)
		}
		return Container{}, err
	}
	c.OpenedAt = openedAt
	contents, err := loadContents(ctx, r.pool, c.ID)
	if err != nil {
		return Container{}, err
	}
	c.Contents = contents
	return c, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadContents(ctx context.Context, q queryer, containerID int64) ([]ContentLine, error) {
	rows, err := q.Query(ctx, `SELECT id, container_id, product_id, sku, quantity FROM container_contents WHERE container_id=$1 ORDER BY id`, containerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var contents []ContentLine
	for rows.Next() {
		var line ContentLine
		if err := rows.Scan(&line.ID, &line.ContainerID, &line.ProductID, &line.SKU, &line.Quantity); err != nil {
			return nil, err
		}
		contents = append(contents, line)
	}
	return contents, rows.Err()
}

// NextSequence atomically advances the per-prefix barcode counter and returns
// the new value. This replaces counting existing barcodes, which raced under
// concurrent creation and could hand out duplicates.
func (r *txRepository) NextSequence(ctx context.Context, prefix string) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO barcode_sequences (prefix, next_value)
VALUES ($1, 1)
ON CONFLICT (prefix) DO UPDATE SET next_value = barcode_sequences.next_value + 1
RETURNING next_value`, prefix).Scan(&next)
	return next, err
}

func (r *txRepository) InsertContainer(ctx context.Context, c Container) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO containers (barcode, container_type, status, warehouse_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id`,
		c.Barcode, string(c.Type), string(c.Status), c.Warehouse, c.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertContents(ctx context.Context, containerID int64, contents []ContentLine) error {
	for _, line := range contents {
		if _, err := r.tx.Exec(ctx, `INSERT INTO container_contents (container_id, product_id, sku, quantity)
VALUES ($1,$2,$3,$4)`, containerID, line.ProductID, line.SKU, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetByBarcodeForUpdate(ctx context.Context, barcode string) (Container, error) {
	var c Container
	var openedAt *time.Time
	err := r.tx.QueryRow(ctx, `SELECT id, barcode, container_type, status, warehouse_id, created_by, created_at, COALESCE(opened_by, ''), opened_at
FROM containers WHERE barcode=$1 FOR UPDATE`, barcode).
		Scan(&c.ID, &c.Barcode, &c.Type, &c.Status, &c.Warehouse, &c.CreatedBy, &c.CreatedAt, &c.OpenedBy, &openedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Container{}, shared.NewNotFound("container", barcode)
		}
		return Container{}, err
	}
	c.OpenedAt = openedAt
	contents, err := loadContents(ctx, r.tx, c.ID)
	if err != nil {
		return Container{}, err
	}
	c.Contents = contents
	return c, nil
}

func (r *txRepository) MarkOpened(ctx context.Context, containerID int64, actor string, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE containers SET status=$1, opened_by=$2, opened_at=$3 WHERE id=$4 AND status=$5`,
		string(StatusOpened), actor, at, containerID, string(StatusActive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConflict
	}
	return nil
}
