package count

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warelane/warelane/internal/platform/db"
	"github.com/warelane/warelane/internal/shared"
)

// Repository persists finalized count reports as a three-level aggregate:
// report, location result, item.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertReport writes the whole aggregate in one transaction.
func (r *Repository) InsertReport(ctx context.Context, report Report) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO count_reports
(id, warehouse_id, status, started_by, started_at, finalized_by, finalized_at, total_expected, total_counted, total_variance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			report.ID, report.WarehouseID, string(report.Status), report.StartedBy, report.StartedAt,
			report.FinalizedBy, report.FinalizedAt, report.TotalExpected, report.TotalCounted, report.TotalVariance)
		if err != nil {
			return err
		}
		for _, location := range report.Locations {
			var resultID int64
			err := tx.QueryRow(ctx, `INSERT INTO count_location_results
(report_id, location_id, location_code, total_expected, total_counted, total_variance, saved_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
				report.ID, location.LocationID, location.LocationCode,
				location.TotalExpected, location.TotalCounted, location.TotalVariance, location.SavedAt).Scan(&resultID)
			if err != nil {
				return err
			}
			for _, item := range location.Items {
				if _, err := tx.Exec(ctx, `INSERT INTO count_items
(location_result_id, product_id, sku, name, expected, counted, variance, unexpected)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
					resultID, item.ProductID, item.SKU, item.Name,
					item.Expected, item.Counted, item.Variance, item.Unexpected); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetReport loads one report with its locations and items.
func (r *Repository) GetReport(ctx context.Context, id string) (Report, error) {
	var report Report
	var status string
	err := r.pool.QueryRow(ctx, `SELECT r.id, r.warehouse_id, w.code, r.status, r.started_by, r.started_at,
COALESCE(r.finalized_by, ''), r.finalized_at, r.total_expected, r.total_counted, r.total_variance
FROM count_reports r JOIN warehouses w ON w.id = r.warehouse_id WHERE r.id=$1`, id).
		Scan(&report.ID, &report.WarehouseID, &report.WarehouseCode, &status, &report.StartedBy, &report.StartedAt,
			&report.FinalizedBy, &report.FinalizedAt, &report.TotalExpected, &report.TotalCounted, &report.TotalVariance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, shared.NewNotFound("count report", id)
		}
		return Report{}, err
	}
	report.Status = SessionStatus(status)

	rows, err := r.pool.Query(ctx, `SELECT id, location_id, location_code, total_expected, total_counted, total_variance, saved_at
FROM count_location_results WHERE report_id=$1 ORDER BY id`, id)
	if err != nil {
		return Report{}, err
	}
	defer rows.Close()
	resultIDs := make([]int64, 0, 4)
	for rows.Next() {
		var resultID int64
		var location LocationResult
		if err := rows.Scan(&resultID, &location.LocationID, &location.LocationCode,
			&location.TotalExpected, &location.TotalCounted, &location.TotalVariance, &location.SavedAt); err != nil {
			return Report{}, err
		}
		report.Locations = append(report.Locations, location)
		resultIDs = append(resultIDs, resultID)
	}
	if err := rows.Err(); err != nil {
		return Report{}, err
	}

	for i, resultID := range resultIDs {
		items, err := r.loadItems(ctx, resultID)
		if err != nil {
			return Report{}, err
		}
		report.Locations[i].Items = items
	}
	return report, nil
}

// ListReports returns report headers for one warehouse, newest first.
func (r *Repository) ListReports(ctx context.Context, warehouseID int64) ([]Report, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.warehouse_id, w.code, r.status, r.started_by, r.started_at,
COALESCE(r.finalized_by, ''), r.finalized_at, r.total_expected, r.total_counted, r.total_variance
FROM count_reports r JOIN warehouses w ON w.id = r.warehouse_id
WHERE r.warehouse_id=$1 ORDER BY r.started_at DESC`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []Report
	for rows.Next() {
		var report Report
		var status string
		if err := rows.Scan(&report.ID, &report.WarehouseID, &report.WarehouseCode, &status, &report.StartedBy, &report.StartedAt,
			&report.FinalizedBy, &report.FinalizedAt, &report.TotalExpected, &report.TotalCounted, &report.TotalVariance); err != nil {
			return nil, err
		}
		report.Status = SessionStatus(status)
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (r *Repository) loadItems(ctx context.Context, resultID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, sku, name, expected, counted, variance, unexpected
FROM count_items WHERE location_result_id=$1 ORDER BY id`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ProductID, &item.SKU, &item.Name,
			&item.Expected, &item.Counted, &item.Variance, &item.Unexpected); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
