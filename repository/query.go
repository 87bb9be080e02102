package repository

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

const (
	tableTransactions = "transactions"
	tablePayPal       = "paypal_transactions"
)

var tables = map[string]struct{}{
	tableTransactions: {},
	tablePayPal:       {},
}

// Fields are column values written to a record.
type Fields map[string]any

// Criteria are column values a record must equal to be selected.
type Criteria map[string]any

// Row is a single selected record keyed by column name.
type Row map[string]any

func table(name string) (string, error) {
	if _, ok := tables[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return pq.QuoteIdentifier(name), nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func columnList(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	quoted := make([]string, 0, len(columns))
	for _, c := range columns {
		quoted = append(quoted, pq.QuoteIdentifier(c))
	}
	return strings.Join(quoted, ", ")
}

// where renders the criteria as a conjunction of equalities with placeholders starting at offset+1.
func where(c Criteria, offset int) (string, []any) {
	if len(c) == 0 {
		return "", nil
	}
	keys := sortedKeys(c)
	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		parts = append(parts, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(k), offset+i+1))
		args = append(args, c[k])
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func buildInsert(tbl string, f Fields) (string, []any) {
	keys := sortedKeys(f)
	cols := make([]string, 0, len(keys))
	holders := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		cols = append(cols, pq.QuoteIdentifier(k))
		holders = append(holders, fmt.Sprintf("$%d", i+1))
		args = append(args, f[k])
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		tbl, strings.Join(cols, ", "), strings.Join(holders, ", "),
	), args
}

// buildUpdate renders an update that only touches the record when at least one field differs.
func buildUpdate(tbl string, id int64, f Fields) (string, []any) {
	keys := sortedKeys(f)
	sets := make([]string, 0, len(keys))
	diffs := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		col := pq.QuoteIdentifier(k)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
		diffs = append(diffs, fmt.Sprintf("%s IS DISTINCT FROM $%d", col, i+1))
		args = append(args, f[k])
	}
	args = append(args, id)
	return fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d AND (%s)",
		tbl, strings.Join(sets, ", "), len(keys)+1, strings.Join(diffs, " OR "),
	), args
}
