package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/routecards/constants"
	"github.com/joseph-ayodele/routecards/internal/common"
)

const (
	routeCardsTable     = "route_cards"
	columnID            = "id"
	columnFormNumber    = "form_number"
	columnAccountNumber = "account_number"
	columnClusterNumber = "cluster_number"
	columnStatus        = "status"
	columnCreatedAt     = "created_at"
	columnOutputPath    = "output_path"
)

// optionalColumns are nullable text columns that must never hold ''.
var optionalColumns = []string{columnAccountNumber, columnClusterNumber, columnStatus}

var (
	// RouteCardsColumns holds the columns for the "route_cards" table.
	RouteCardsColumns = []*schema.Column{
		{Name: columnID, Type: field.TypeInt, Increment: true},
		{Name: columnFormNumber, Type: field.TypeString, Unique: true, Size: constants.MaxFormNumberLength},
		{Name: columnAccountNumber, Type: field.TypeString, Nullable: true},
		{Name: columnClusterNumber, Type: field.TypeString, Nullable: true},
		{Name: columnStatus, Type: field.TypeString, Nullable: true},
		{Name: columnCreatedAt, Type: field.TypeTime},
		{Name: columnOutputPath, Type: field.TypeString, Size: 2048},
	}
	// RouteCardsTable holds the schema information for the "route_cards" table.
	RouteCardsTable = &schema.Table{
		Name:       routeCardsTable,
		Columns:    RouteCardsColumns,
		PrimaryKey: []*schema.Column{RouteCardsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "routecard_created_at",
				Unique:  false,
				Columns: []*schema.Column{RouteCardsColumns[5]},
			},
		},
	}
	// Tables holds all the tables in the ledger schema.
	Tables = []*schema.Table{RouteCardsTable}
)

// Migrate creates or upgrades the ledger schema, imports the first-generation ledger table
// when the store still has one, and normalizes legacy rows.
// Running it against an up-to-date store is a no-op.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		return common.LedgerError("prepare migration", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("ledger.migrate.failed", "error", err)
		return common.LedgerError("create schema", err)
	}

	imported, err := ImportLegacy(ctx, db, time.Now)
	if err != nil {
		logger.Error("ledger.import_legacy.failed", "error", err)
		return err
	}
	if imported > 0 {
		logger.Info("ledger.import_legacy.ok", "table", legacyTable, "imported_rows", imported)
	}

	normalized, err := NormalizeLegacy(ctx, db)
	if err != nil {
		logger.Error("ledger.normalize.failed", "error", err)
		return err
	}
	logger.Info("ledger.migrate.ok", "dialect", db.Dialect, "normalized_rows", normalized)
	return nil
}

// NormalizeLegacy rewrites empty-string optional fields to NULL in one transaction and
// returns the number of rows touched. Older ledgers stored "" for unset values.
func NormalizeLegacy(ctx context.Context, db *DB) (int64, error) {
	tx, err := db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return 0, common.LedgerError("begin normalize", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, col := range optionalColumns {
		query, args := entsql.Dialect(db.Dialect).
			Update(routeCardsTable).
			SetNull(col).
			Where(entsql.EQ(col, "")).
			Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, common.LedgerError("normalize "+col, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, common.LedgerError("normalize "+col, err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, common.LedgerError("commit normalize", err)
	}
	return total, nil
}
