package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Columns the repositories reference in their SQL. A rename in either the DDL
// or a repository query has to land in both places; this pins the two sides
// together without a live database.
var repositoryColumns = map[string][]string{
	"warehouses":              {"id", "code", "name", "default_location_id", "created_at", "updated_at"},
	"locations":               {"id", "warehouse_id", "code", "name", "created_at"},
	"products":                {"id", "sku", "name", "barcode", "base_unit", "units_per_inner_pack", "inner_packs_per_outer_pack", "is_active", "created_at", "updated_at"},
	"product_serials":         {"id", "product_id", "code", "created_at"},
	"inventory_rows":          {"product_id", "warehouse_id", "location_id", "qty", "updated_at"},
	"stock_transactions":      {"id", "tx_type", "warehouse_id", "location_id", "actor", "reference", "reversal_of_id", "posted_at", "created_at"},
	"stock_transaction_lines": {"id", "transaction_id", "product_id", "product_sku", "requested_qty", "requested_unit", "base_qty"},
	"barcode_sequences":       {"prefix", "next_value"},
	"containers":              {"id", "barcode", "container_type", "status", "warehouse_id", "created_by", "created_at", "opened_by", "opened_at"},
	"container_contents":      {"id", "container_id", "product_id", "sku", "quantity"},
	"count_reports":           {"id", "warehouse_id", "status", "started_by", "started_at", "finalized_by", "finalized_at", "total_expected", "total_counted", "total_variance"},
	"count_location_results":  {"id", "report_id", "location_id", "location_code", "total_expected", "total_counted", "total_variance", "saved_at"},
	"count_items":             {"id", "location_result_id", "product_id", "sku", "name", "expected", "counted", "variance", "unexpected"},
	"idempotency_keys":        {"key", "module", "created_at"},
	"audit_logs":              {"id", "actor", "action", "entity", "entity_id", "meta", "created_at"},
}

func TestSchemaDefinesRepositoryColumns(t *testing.T) {
	for table, columns := range repositoryColumns {
		defined := tableColumns(t, table)
		require.NotEmptyf(t, defined, "migration does not create table %s", table)
		for _, column := range columns {
			require.Truef(t, defined[column], "table %s is missing column %s", table, column)
		}
	}
}

// tableColumns extracts the column names declared by the CREATE TABLE
// statement for the given table.
func tableColumns(t *testing.T, table string) map[string]bool {
	t.Helper()
	prefix := "CREATE TABLE IF NOT EXISTS " + table + " ("
	for _, stmt := range statements {
		if !strings.HasPrefix(strings.TrimSpace(stmt), prefix) {
			continue
		}
		columns := make(map[string]bool)
		lines := strings.Split(stmt, "\n")
		for _, line := range lines[1:] {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, ")") {
				continue
			}
			name := strings.Fields(line)[0]
			// Table-level constraints (PRIMARY KEY, UNIQUE) start uppercase.
			if name != strings.ToLower(name) {
				continue
			}
			columns[name] = true
		}
		return columns
	}
	return nil
}
