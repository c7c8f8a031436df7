package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warelane/warelane/internal/shared"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside one atomic unit of work.
type TxRepository interface {
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	InsertLines(ctx context.Context, txID int64, lines []TransactionLine) error
	GetBalanceForUpdate(ctx context.Context, productID, warehouseID, locationID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	GetBalances(ctx context.Context, warehouseID, locationID int64, productIDs []int64) (map[int64]float64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the transactional operations to an externally owned
// pgx.Tx, letting another module commit its writes and a stock movement in one
// unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// ErrBalanceNotFound indicates a ledger row that has never been written.
var ErrBalanceNotFound = errors.New("inventory row not found")

// WithTx executes the callback inside a repeatable-read transaction. The
// FOR UPDATE row locks taken by the callback are held until commit or abort,
// which is what serializes concurrent writers on the same ledger key.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetTransaction loads a transaction header together with its lines.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	var tx Transaction
	err := r.pool.QueryRow(ctx, `SELECT id, tx_type, warehouse_id, location_id, actor, COALESCE(reference, ''), COALESCE(reversal_of_id, 0), posted_at, created_at
FROM stock_transactions WHERE id=$1`, id).
		Scan(&tx.ID, &tx.Type, &tx.WarehouseID, &tx.LocationID, &tx.Actor, &tx.Reference, &tx.ReversalOfID, &tx.PostedAt, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, &shared.NotFoundError{Entity: "transaction", Code: intToString(id)}
		}
		return Transaction{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, transaction_id, product_id, product_sku, requested_qty, requested_unit, base_qty
FROM stock_transaction_lines WHERE transaction_id=$1 ORDER BY id`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line TransactionLine
		if err := rows.Scan(&line.ID, &line.TransactionID, &line.ProductID, &line.ProductSKU, &line.RequestedQty, &line.RequestedUnit, &line.BaseQty); err != nil {
			return Transaction{}, err
		}
		tx.Lines = append(tx.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// ListOnHand lists current ledger rows with product identity attached.
func (r *Repository) ListOnHand(ctx context.Context, filter OnHandFilter) ([]OnHandRow, error) {
	query := `SELECT i.product_id, p.sku, p.name, i.qty
FROM inventory_rows i JOIN products p ON p.id = i.product_id
WHERE i.warehouse_id=$1 AND i.location_id=$2`
	args := []any{filter.WarehouseID, filter.LocationID}
	if filter.ProductID != 0 {
		query += ` AND i.product_id=$3`
		args = append(args, filter.ProductID)
	}
	query += ` ORDER BY p.sku`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	onHand := []OnHandRow{}
	for rows.Next() {
		var row OnHandRow
		if err := rows.Scan(&row.ProductID, &row.SKU, &row.Name, &row.Qty); err != nil {
			return nil, err
		}
		onHand = append(onHand, row)
	}
	return onHand, rows.Err()
}

// ListMovements lists stock card entries derived from committed transactions.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]MovementEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.tx_type, l.product_sku,
CASE WHEN t.tx_type <> 'OUTBOUND' THEN l.base_qty ELSE 0 END,
CASE WHEN t.tx_type = 'OUTBOUND' THEN l.base_qty ELSE 0 END,
t.posted_at, t.actor, COALESCE(t.reference, '')
FROM stock_transactions t JOIN stock_transaction_lines l ON l.transaction_id = t.id
WHERE t.warehouse_id=$1 AND ($2 = 0 OR t.location_id = $2) AND ($3 = 0 OR l.product_id = $3)
AND t.posted_at BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')
ORDER BY t.posted_at ASC, l.id ASC
LIMIT $6`, filter.WarehouseID, filter.LocationID, filter.ProductID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []MovementEntry{}
	for rows.Next() {
		var e MovementEntry
		if err := rows.Scan(&e.TransactionID, &e.Type, &e.ProductSKU, &e.QtyIn, &e.QtyOut, &e.PostedAt, &e.Actor, &e.Reference); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) InsertTransaction(ctx context.Context, tx Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_transactions (tx_type, warehouse_id, location_id, actor, reference, reversal_of_id, posted_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		string(tx.Type), tx.WarehouseID, tx.LocationID, tx.Actor, nullString(tx.Reference), nullInt(tx.ReversalOfID), tx.PostedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLines(ctx context.Context, txID int64, lines []TransactionLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_transaction_lines (transaction_id, product_id, product_sku, requested_qty, requested_unit, base_qty)
VALUES ($1,$2,$3,$4,$5,$6)`, txID, line.ProductID, line.ProductSKU, line.RequestedQty, string(line.RequestedUnit), line.BaseQty); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, productID, warehouseID, locationID int64) (Balance, error) {
	var bal Balance
	err := r.tx.QueryRow(ctx, `SELECT product_id, warehouse_id, location_id, qty, updated_at
FROM inventory_rows WHERE product_id=$1 AND warehouse_id=$2 AND location_id=$3 FOR UPDATE`,
		productID, warehouseID, locationID).
		Scan(&bal.ProductID, &bal.WarehouseID, &bal.LocationID, &bal.Qty, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{ProductID: productID, WarehouseID: warehouseID, LocationID: locationID}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_rows (product_id, warehouse_id, location_id, qty, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (product_id, warehouse_id, location_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`,
		balance.ProductID, balance.WarehouseID, balance.LocationID, balance.Qty)
	return err
}

func (r *txRepository) GetBalances(ctx context.Context, warehouseID, locationID int64, productIDs []int64) (map[int64]float64, error) {
	balances := make(map[int64]float64, len(productIDs))
	if len(productIDs) == 0 {
		return balances, nil
	}
	rows, err := r.tx.Query(ctx, `SELECT product_id, qty FROM inventory_rows
WHERE warehouse_id=$1 AND location_id=$2 AND product_id = ANY($3)`, warehouseID, locationID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var productID int64
		var qty float64
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		balances[productID] = qty
	}
	return balances, rows.Err()
}
