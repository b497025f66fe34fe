package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/routecards/constants"
	"github.com/joseph-ayodele/routecards/internal/common"
)

// Table and columns written by the first generation of the route-card tool.
const (
	legacyTable         = "маршрутные_карты"
	legacyFormNumber    = "Номер_бланка"
	legacyAccountNumber = "Учетный_номер"
	legacyClusterNumber = "Номер_кластера"
	legacyStatus        = "Статус"
	legacyCreatedAt     = "Дата_создания"
	legacyOutputPath    = "Путь_к_файлу"
)

// legacyTimeLayout is how the first generation wrote Дата_создания, in local time.
const legacyTimeLayout = "2006-01-02 15:04:05"

type legacyRow struct {
	id                                int64
	formNumber                        sql.NullString
	account, cluster, status, created sql.NullString
	outputPath                        sql.NullString
}

// ImportLegacy copies rows from the first-generation ledger table into route_cards in one
// transaction and returns the number of rows copied. Form numbers already in route_cards are
// skipped, as are repeats inside the legacy table (lowest id wins), so running it again is a no-op.
// A store without the legacy table imports nothing.
func ImportLegacy(ctx context.Context, db *DB, now func() time.Time) (int64, error) {
	if now == nil {
		now = time.Now
	}
	tx, err := db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return 0, common.LedgerError("begin legacy import", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := hasTable(ctx, tx, db.Dialect, legacyTable)
	if err != nil {
		return 0, common.LedgerError("look up legacy table", err)
	}
	if !ok {
		return 0, nil
	}

	seen, err := issuedNumbers(ctx, tx, db.Dialect)
	if err != nil {
		return 0, err
	}
	rows, err := readLegacyRows(ctx, tx, db.Dialect)
	if err != nil {
		return 0, err
	}

	var imported int64
	for _, row := range rows {
		n := strings.TrimSpace(row.formNumber.String)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}

		query, args := entsql.Dialect(db.Dialect).
			Insert(routeCardsTable).
			Columns(columnFormNumber, columnAccountNumber, columnClusterNumber, columnStatus, columnCreatedAt, columnOutputPath).
			Values(n, legacyText(row.account), legacyText(row.cluster), legacyStatusValue(row.status),
				legacyTime(row.created, now), strings.TrimSpace(row.outputPath.String)).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, common.LedgerError(fmt.Sprintf("import legacy row %d (%s)", row.id, n), err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, common.LedgerError("commit legacy import", err)
	}
	return imported, nil
}

func hasTable(ctx context.Context, tx *sql.Tx, dia, name string) (bool, error) {
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	if dia == dialect.Postgres {
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
	}
	var n int
	if err := tx.QueryRowContext(ctx, query, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func issuedNumbers(ctx context.Context, tx *sql.Tx, dia string) (map[string]struct{}, error) {
	query, args := entsql.Dialect(dia).
		Select(columnFormNumber).
		From(entsql.Table(routeCardsTable)).
		Query()
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.LedgerError("read issued form numbers", err)
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, common.LedgerError("scan issued form number", err)
		}
		seen[n] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, common.LedgerError("iterate issued form numbers", err)
	}
	return seen, nil
}

func readLegacyRows(ctx context.Context, tx *sql.Tx, dia string) ([]legacyRow, error) {
	query, args := entsql.Dialect(dia).
		Select("id", legacyFormNumber, legacyAccountNumber, legacyClusterNumber, legacyStatus, legacyCreatedAt, legacyOutputPath).
		From(entsql.Table(legacyTable)).
		OrderBy("id").
		Query()
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.LedgerError("read legacy ledger", err)
	}
	defer func() { _ = rows.Close() }()

	var out []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.id, &r.formNumber, &r.account, &r.cluster, &r.status, &r.created, &r.outputPath); err != nil {
			return nil, common.LedgerError("scan legacy row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, common.LedgerError("iterate legacy ledger", err)
	}
	return out, nil
}

// legacyText maps the first generation's "" placeholders to NULL.
func legacyText(ns sql.NullString) any {
	v := strings.TrimSpace(ns.String)
	if !ns.Valid || v == "" {
		return nil
	}
	return v
}

func legacyStatusValue(ns sql.NullString) any {
	v := legacyText(ns)
	if v == nil {
		return nil
	}
	if s, ok := constants.CanonicalizeStatus(v.(string)); ok {
		return string(s)
	}
	return v
}

// legacyTime parses Дата_создания; missing or malformed values fall back to now.
func legacyTime(ns sql.NullString, now func() time.Time) time.Time {
	if t, err := time.ParseInLocation(legacyTimeLayout, strings.TrimSpace(ns.String), time.Local); err == nil {
		return t.UTC()
	}
	return now().UTC()
}
