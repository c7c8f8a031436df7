package masterdata

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warelane/warelane/internal/shared"
)

// Repository reads master data from PostgreSQL. The core only consumes lookups;
// administration of this data lives outside this service.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, sku, name, COALESCE(barcode, ''), base_unit, units_per_inner_pack, inner_packs_per_outer_pack, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Barcode, &p.BaseUnit, &p.UnitsPerInnerPack, &p.InnerPacksPerOuterPack, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetProductByCode resolves a product by SKU or primary barcode.
func (r *Repository) GetProductByCode(ctx context.Context, code string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku=$1 OR barcode=$1`, code)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.NewNotFound("product", code)
		}
		return Product{}, err
	}
	return p, nil
}

// GetProductByBarcode resolves a product strictly by its primary barcode.
func (r *Repository) GetProductByBarcode(ctx context.Context, barcode string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE barcode=$1`, barcode)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.NewNotFound("product", barcode)
		}
		return Product{}, err
	}
	return p, nil
}

// GetProductBySKU resolves a product strictly by SKU.
func (r *Repository) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku=$1`, sku)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.NewNotFound("product", sku)
		}
		return Product{}, err
	}
	return p, nil
}

// GetProductsByCodes resolves a batch of SKU-or-barcode codes in one query.
// Codes that match nothing are simply absent from the result; the caller
// decides whether that aborts its operation.
func (r *Repository) GetProductsByCodes(ctx context.Context, codes []string) ([]Product, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE sku = ANY($1) OR barcode = ANY($1)`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListProducts returns products matching the optional search filter.
func (r *Repository) ListProducts(ctx context.Context, search string, limit, offset int) ([]Product, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active`
	args := []any{}
	if search != "" {
		query += ` AND (sku ILIKE $1 OR name ILIKE $1 OR barcode ILIKE $1)`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY sku LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetWarehouseByCode finds a warehouse by its short code.
func (r *Repository) GetWarehouseByCode(ctx context.Context, code string) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(default_location_id, 0), created_at, updated_at FROM warehouses WHERE code=$1`, code).
		Scan(&w.ID, &w.Code, &w.Name, &w.DefaultLocationID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, shared.NewNotFound("warehouse", code)
		}
		return Warehouse{}, err
	}
	return w, nil
}

// GetWarehouseByID finds a warehouse by primary key.
func (r *Repository) GetWarehouseByID(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(default_location_id, 0), created_at, updated_at FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.Code, &w.Name, &w.DefaultLocationID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, shared.NewNotFound("warehouse", strconv.FormatInt(id, 10))
		}
		return Warehouse{}, err
	}
	return w, nil
}

// ListWarehouses returns all warehouses.
func (r *Repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, COALESCE(default_location_id, 0), created_at, updated_at FROM warehouses ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.DefaultLocationID, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

// GetLocationByCode finds a location by QR code inside one warehouse.
func (r *Repository) GetLocationByCode(ctx context.Context, code string, warehouseID int64) (Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx, `SELECT id, warehouse_id, code, name, created_at FROM locations WHERE code=$1 AND warehouse_id=$2`, code, warehouseID).
		Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Name, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, shared.NewNotFound("location", code)
		}
		return Location{}, err
	}
	return l, nil
}

// GetLocationByID loads a location by primary key.
func (r *Repository) GetLocationByID(ctx context.Context, id int64) (Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx, `SELECT id, warehouse_id, code, name, created_at FROM locations WHERE id=$1`, id).
		Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Name, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, shared.NewNotFound("location", strconv.FormatInt(id, 10))
		}
		return Location{}, err
	}
	return l, nil
}

// ListLocations returns the locations of one warehouse.
func (r *Repository) ListLocations(ctx context.Context, warehouseID int64) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, warehouse_id, code, name, created_at FROM locations WHERE warehouse_id=$1 ORDER BY code`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Name, &l.CreatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// GetSerial looks up a registered serialized unit by its full code.
func (r *Repository) GetSerial(ctx context.Context, code string) (Serial, error) {
	var s Serial
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, code, created_at FROM product_serials WHERE code=$1`, code).
		Scan(&s.ID, &s.ProductID, &s.Code, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Serial{}, shared.NewNotFound("serial", code)
		}
		return Serial{}, err
	}
	return s, nil
}

// GetProductByID loads a product by primary key.
func (r *Repository) GetProductByID(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.NewNotFound("product", strconv.FormatInt(id, 10))
		}
		return Product{}, err
	}
	return p, nil
}
