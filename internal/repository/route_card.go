package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"

	"github.com/joseph-ayodele/routecards/constants"
	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/entity"
)

// ListFilter narrows List by creation time (inclusive bounds, either may be nil).
type ListFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// RouteCardRepository is the ledger of issued form numbers.
// Append enforces uniqueness itself; Exists and FindExisting are fast-path checks only.
type RouteCardRepository interface {
	Exists(ctx context.Context, formNumber string) (bool, error)
	FindExisting(ctx context.Context, formNumbers []string) ([]string, error)
	Append(ctx context.Context, card *entity.RouteCard) (*entity.RouteCard, error)
	Get(ctx context.Context, formNumber string) (*entity.RouteCard, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.RouteCard, error)
	Count(ctx context.Context) (int, error)
}

// existsChunk keeps IN lists well under SQLite's bound-parameter limit.
const existsChunk = 500

var selectColumns = []string{
	columnID,
	columnFormNumber,
	columnAccountNumber,
	columnClusterNumber,
	columnStatus,
	columnCreatedAt,
	columnOutputPath,
}

type routeCardRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewRouteCardRepository(db *DB, logger *slog.Logger) RouteCardRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &routeCardRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (r *routeCardRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *routeCardRepository) Exists(ctx context.Context, formNumber string) (bool, error) {
	query, args := r.builder().
		Select(entsql.Count("*")).
		From(entsql.Table(routeCardsTable)).
		Where(entsql.EQ(columnFormNumber, formNumber)).
		Query()

	var n int
	if err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		r.logger.Error("failed to check form number", "form_number", formNumber, "error", err)
		return false, common.LedgerError("query form number "+formNumber, err)
	}
	return n > 0, nil
}

func (r *routeCardRepository) FindExisting(ctx context.Context, formNumbers []string) ([]string, error) {
	var found []string
	for chunk := range slices.Chunk(formNumbers, existsChunk) {
		args := make([]any, len(chunk))
		for i, n := range chunk {
			args[i] = n
		}
		query, qargs := r.builder().
			Select(columnFormNumber).
			From(entsql.Table(routeCardsTable)).
			Where(entsql.In(columnFormNumber, args...)).
			Query()

		rows, err := r.db.SQL.QueryContext(ctx, query, qargs...)
		if err != nil {
			r.logger.Error("failed to check form numbers", "count", len(chunk), "error", err)
			return nil, common.LedgerError("query form numbers", err)
		}
		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				_ = rows.Close()
				return nil, common.LedgerError("scan form number", err)
			}
			found = append(found, n)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, common.LedgerError("iterate form numbers", err)
		}
		_ = rows.Close()
	}
	slices.Sort(found)
	return found, nil
}

func (r *routeCardRepository) Append(ctx context.Context, card *entity.RouteCard) (*entity.RouteCard, error) {
	rec, err := normalizeCard(card, r.now)
	if err != nil {
		return nil, err
	}

	insert := r.builder().
		Insert(routeCardsTable).
		Columns(columnFormNumber, columnAccountNumber, columnClusterNumber, columnStatus, columnCreatedAt, columnOutputPath).
		Values(rec.FormNumber, nullable(rec.AccountNumber), nullable(rec.ClusterNumber), nullable(rec.Status), rec.CreatedAt, rec.OutputPath)

	if err := r.insert(ctx, insert, rec); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			r.logger.Warn("ledger.append.duplicate", "form_number", rec.FormNumber)
			return nil, common.WrapAppError(common.CodeDuplicateKey, "form number "+rec.FormNumber+" is already recorded", common.ErrDuplicateKey, err)
		}
		r.logger.Error("failed to append route card", "form_number", rec.FormNumber, "output_path", rec.OutputPath, "error", err)
		return nil, common.LedgerError("append form number "+rec.FormNumber, err)
	}
	return rec, nil
}

// insert runs the statement and sets rec.ID. pgx has no LastInsertId, so postgres uses RETURNING.
func (r *routeCardRepository) insert(ctx context.Context, insert *entsql.InsertBuilder, rec *entity.RouteCard) error {
	if r.db.Dialect == dialect.Postgres {
		query, args := insert.Returning(columnID).Query()
		return r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&rec.ID)
	}
	query, args := insert.Query()
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = int(id)
	return nil
}

func (r *routeCardRepository) Get(ctx context.Context, formNumber string) (*entity.RouteCard, error) {
	query, args := r.builder().
		Select(selectColumns...).
		From(entsql.Table(routeCardsTable)).
		Where(entsql.EQ(columnFormNumber, formNumber)).
		Query()

	card, err := scanRouteCard(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapAppError(common.CodeNotFound, "form number "+formNumber, common.ErrNotFound, err)
	}
	if err != nil {
		r.logger.Error("failed to get route card", "form_number", formNumber, "error", err)
		return nil, common.LedgerError("get form number "+formNumber, err)
	}
	return card, nil
}

func (r *routeCardRepository) List(ctx context.Context, filter ListFilter) ([]*entity.RouteCard, error) {
	sel := r.builder().
		Select(selectColumns...).
		From(entsql.Table(routeCardsTable))

	var preds []*entsql.Predicate
	if filter.CreatedFrom != nil {
		preds = append(preds, entsql.GTE(columnCreatedAt, filter.CreatedFrom.UTC()))
	}
	if filter.CreatedTo != nil {
		preds = append(preds, entsql.LTE(columnCreatedAt, filter.CreatedTo.UTC()))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	query, args := sel.OrderBy(columnFormNumber).Query()

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list route cards", "error", err)
		return nil, common.LedgerError("list route cards", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*entity.RouteCard
	for rows.Next() {
		card, err := scanRouteCard(rows)
		if err != nil {
			return nil, common.LedgerError("scan route card", err)
		}
		result = append(result, card)
	}
	if err := rows.Err(); err != nil {
		return nil, common.LedgerError("iterate route cards", err)
	}
	return result, nil
}

func (r *routeCardRepository) Count(ctx context.Context) (int, error) {
	query, args := r.builder().
		Select(entsql.Count("*")).
		From(entsql.Table(routeCardsTable)).
		Query()

	var n int
	if err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, common.LedgerError("count route cards", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRouteCard(s scanner) (*entity.RouteCard, error) {
	var (
		card                     entity.RouteCard
		account, cluster, status sql.NullString
	)
	if err := s.Scan(&card.ID, &card.FormNumber, &account, &cluster, &status, &card.CreatedAt, &card.OutputPath); err != nil {
		return nil, err
	}
	card.AccountNumber = fromNull(account)
	card.ClusterNumber = fromNull(cluster)
	card.Status = fromNull(status)
	card.CreatedAt = card.CreatedAt.UTC()
	return &card, nil
}

// normalizeCard validates card and returns a copy ready for insertion:
// empty optional strings become nil, the status is canonicalized and CreatedAt defaults to now.
func normalizeCard(card *entity.RouteCard, now func() time.Time) (*entity.RouteCard, error) {
	if card == nil {
		return nil, common.InvalidInputErrorf("route card is nil")
	}
	rec := *card
	rec.FormNumber = strings.TrimSpace(rec.FormNumber)
	rec.AccountNumber = emptyToNil(rec.AccountNumber)
	rec.ClusterNumber = emptyToNil(rec.ClusterNumber)
	rec.Status = emptyToNil(rec.Status)

	v := common.NewValidator().
		Field("form_number", rec.FormNumber, common.Digits).
		Field("output_path", rec.OutputPath, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	if rec.Status != nil {
		s, ok := constants.CanonicalizeStatus(*rec.Status)
		if !ok {
			return nil, common.InvalidInputErrorf("unknown status %q (want one of %s)", *rec.Status, strings.Join(constants.StatusStrings(), ", "))
		}
		status := string(s)
		rec.Status = &status
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ID = 0
	return &rec, nil
}

func emptyToNil(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	v := ns.String
	return &v
}
