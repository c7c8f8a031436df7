package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewReportTotalsRefreshHandler recomputes count report and location totals
// from their item rows. Totals are denormalized at finalize time; this task
// repairs any drift introduced by manual corrections to item rows.
func NewReportTotalsRefreshHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tag, err := pool.Exec(ctx, `UPDATE count_location_results r SET
total_expected = agg.expected,
total_counted  = agg.counted,
total_variance = agg.variance
FROM (
	SELECT location_result_id,
		COALESCE(SUM(expected), 0) AS expected,
		COALESCE(SUM(counted), 0)  AS counted,
		COALESCE(SUM(variance), 0) AS variance
	FROM count_items GROUP BY location_result_id
) agg
WHERE agg.location_result_id = r.id
  AND (r.total_expected <> agg.expected OR r.total_counted <> agg.counted OR r.total_variance <> agg.variance)`)
		if err != nil {
			logger.Error("refresh location totals", slog.Any("error", err))
			return err
		}
		locations := tag.RowsAffected()

		tag, err = pool.Exec(ctx, `UPDATE count_reports c SET
total_expected = agg.expected,
total_counted  = agg.counted,
total_variance = agg.variance
FROM (
	SELECT report_id,
		COALESCE(SUM(total_expected), 0) AS expected,
		COALESCE(SUM(total_counted), 0)  AS counted,
		COALESCE(SUM(total_variance), 0) AS variance
	FROM count_location_results GROUP BY report_id
) agg
WHERE agg.report_id = c.id
  AND (c.total_expected <> agg.expected OR c.total_counted <> agg.counted OR c.total_variance <> agg.variance)`)
		if err != nil {
			logger.Error("refresh report totals", slog.Any("error", err))
			return err
		}
		logger.Info("count totals refreshed",
			slog.Int64("locations", locations),
			slog.Int64("reports", tag.RowsAffected()))
		return nil
	}
}
