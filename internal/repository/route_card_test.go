package repository_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/entity"
	"github.com/joseph-ayodele/routecards/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openLedger(t *testing.T) *repository.DB {
	t.Helper()

	db, err := repository.Open(t.Context(), repository.Config{
		DSN: filepath.Join(t.TempDir(), "ledger", "route_cards.db"),
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, discardLogger()) })

	require.NoError(t, repository.Migrate(t.Context(), db, discardLogger()))
	return db
}

func ptr(s string) *string { return &s }

// implementations runs the same contract against the SQL ledger and the in-memory fake.
func implementations(t *testing.T) map[string]repository.RouteCardRepository {
	t.Helper()

	return map[string]repository.RouteCardRepository{
		"sqlite": repository.NewRouteCardRepository(openLedger(t), discardLogger()),
		"memory": repository.NewMemoryRouteCardRepository(),
	}
}

func card(n string) *entity.RouteCard {
	return &entity.RouteCard{
		FormNumber: n,
		OutputPath: filepath.Join("route_cards", "route_card_"+n+".pptx"),
		CreatedAt:  time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
	}
}

func Test_Append_Makes_Record_Visible_To_Exists(t *testing.T) {
	t.Parallel()

	for name, repo := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			exists, err := repo.Exists(ctx, "000001")
			require.NoError(t, err)
			assert.False(t, exists)

			rec, err := repo.Append(ctx, card("000001"))
			require.NoError(t, err)
			assert.Positive(t, rec.ID)

			exists, err = repo.Exists(ctx, "000001")
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = repo.Exists(ctx, "1")
			require.NoError(t, err)
			assert.False(t, exists, "lookup is by exact key")
		})
	}
}

func Test_Append_Rejects_Duplicate_Key_Without_Precheck(t *testing.T) {
	t.Parallel()

	for name, repo := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			_, err := repo.Append(ctx, card("000043"))
			require.NoError(t, err)

			second := card("000043")
			second.OutputPath = "elsewhere.pptx"
			_, err = repo.Append(ctx, second)
			require.ErrorIs(t, err, common.ErrDuplicateKey)

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			got, err := repo.Get(ctx, "000043")
			require.NoError(t, err)
			assert.Equal(t, card("000043").OutputPath, got.OutputPath, "first record wins")
		})
	}
}

func Test_Append_Stores_Unset_Optional_Fields_As_Nil(t *testing.T) {
	t.Parallel()

	for name, repo := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			in := card("000007")
			in.AccountNumber = ptr("")
			in.ClusterNumber = ptr("  ")
			in.Status = ptr("in progress")
			_, err := repo.Append(ctx, in)
			require.NoError(t, err)

			got, err := repo.Get(ctx, "000007")
			require.NoError(t, err)

			want := &entity.RouteCard{
				ID:         got.ID,
				FormNumber: "000007",
				Status:     ptr("IN_PROGRESS"),
				CreatedAt:  in.CreatedAt,
				OutputPath: in.OutputPath,
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_Append_Rejects_Invalid_Records(t *testing.T) {
	t.Parallel()

	for name, repo := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			bad := card("00A001")
			_, err := repo.Append(ctx, bad)
			require.ErrorIs(t, err, common.ErrInvalidInput)

			noPath := card("000001")
			noPath.OutputPath = ""
			_, err = repo.Append(ctx, noPath)
			require.ErrorIs(t, err, common.ErrInvalidInput)

			badStatus := card("000002")
			badStatus.Status = ptr("lost")
			_, err = repo.Append(ctx, badStatus)
			require.ErrorIs(t, err, common.ErrInvalidInput)

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func Test_FindExisting_Returns_Sorted_Hits_Across_Chunks(t *testing.T) {
	t.Parallel()

	for name, repo := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			for _, n := range []string{"000900", "000043", "000001"} {
				_, err := repo.Append(ctx, card(n))
				require.NoError(t, err)
			}

			candidates := make([]string, 0, 1200)
			for i := 1200; i >= 1; i-- {
				candidates = append(candidates, fmt.Sprintf("%06d", i))
			}

			found, err := repo.FindExisting(ctx, candidates)
			require.NoError(t, err)
			assert.Equal(t, []string{"000001", "000043", "000900"}, found)

			none, err := repo.FindExisting(ctx, []string{"999999"})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func Test_List_Filters_By_Creation_Window(t *testing.T) {
	t.Parallel()

	for name, repo := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
			for i, n := range []string{"000003", "000001", "000002"} {
				c := card(n)
				c.CreatedAt = base.AddDate(0, 0, i)
				_, err := repo.Append(ctx, c)
				require.NoError(t, err)
			}

			all, err := repo.List(ctx, repository.ListFilter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "000001", all[0].FormNumber)
			assert.Equal(t, "000003", all[2].FormNumber)

			from := base.AddDate(0, 0, 1)
			to := base.AddDate(0, 0, 1)
			window, err := repo.List(ctx, repository.ListFilter{CreatedFrom: &from, CreatedTo: &to})
			require.NoError(t, err)
			require.Len(t, window, 1)
			assert.Equal(t, "000001", window[0].FormNumber)
			assert.True(t, window[0].CreatedAt.Equal(from))
		})
	}
}

func Test_Migrate_Is_Idempotent_And_Normalizes_Legacy_Empty_Strings(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := openLedger(t)
	repo := repository.NewRouteCardRepository(db, discardLogger())

	_, err := repo.Append(ctx, card("000001"))
	require.NoError(t, err)

	// Rows written by older releases carried '' for unset fields.
	_, err = db.SQL.ExecContext(ctx,
		"INSERT INTO route_cards (form_number, account_number, cluster_number, status, created_at, output_path) VALUES (?, '', '', '', ?, ?)",
		"000002", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "legacy.pptx")
	require.NoError(t, err)

	require.NoError(t, repository.Migrate(ctx, db, discardLogger()))

	n, err := repository.NormalizeLegacy(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, n, "second normalization has nothing left to do")

	var empties int
	require.NoError(t, db.SQL.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM route_cards WHERE account_number = '' OR cluster_number = '' OR status = ''").Scan(&empties))
	assert.Zero(t, empties)

	var nulls int
	require.NoError(t, db.SQL.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM route_cards WHERE form_number = '000002' AND account_number IS NULL AND cluster_number IS NULL AND status IS NULL").Scan(&nulls))
	assert.Equal(t, 1, nulls)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func Test_Ledger_Survives_Reopen(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	dsn := filepath.Join(t.TempDir(), "route_cards.db")

	open := func() *repository.DB {
		db, err := repository.Open(ctx, repository.Config{DSN: dsn}, discardLogger())
		require.NoError(t, err)
		require.NoError(t, repository.Migrate(ctx, db, discardLogger()))
		return db
	}

	db := open()
	_, err := repository.NewRouteCardRepository(db, discardLogger()).Append(ctx, card("000010"))
	require.NoError(t, err)
	repository.Close(db, discardLogger())

	db = open()
	defer repository.Close(db, discardLogger())

	exists, err := repository.NewRouteCardRepository(db, discardLogger()).Exists(ctx, "000010")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repository.HealthCheck(ctx, db, time.Second, discardLogger()))
}

func Test_Open_Rejects_Empty_DSN(t *testing.T) {
	t.Parallel()

	_, err := repository.Open(context.Background(), repository.Config{}, discardLogger())
	require.ErrorIs(t, err, common.ErrLedger)
}
