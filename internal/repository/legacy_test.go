package repository_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/routecards/internal/repository"
)

// seedFirstGenerationLedger creates the table the first route-card tool wrote, with its "" placeholders.
func seedFirstGenerationLedger(t *testing.T, db *repository.DB) {
	t.Helper()

	_, err := db.SQL.ExecContext(t.Context(), `
		CREATE TABLE IF NOT EXISTS маршрутные_карты (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			Номер_бланка TEXT NOT NULL,
			Учетный_номер TEXT,
			Номер_кластера TEXT,
			Статус TEXT,
			Дата_создания TEXT,
			Путь_к_файлу TEXT
		)`)
	require.NoError(t, err)

	rows := [][]any{
		{"000043", "", "", "", "2025-03-14 10:20:30", "route_cards/маршрутная_карта_000043.pptx"},
		{"000044", "ACC-7", "", "", "2025-03-14 10:21:00", "route_cards/маршрутная_карта_000044.pptx"},
		{"000043", "", "", "", "2025-03-15 08:00:00", "route_cards/again_000043.pptx"},
		{"000045", "", "", "", "not a date", "route_cards/маршрутная_карта_000045.pptx"},
	}
	for _, r := range rows {
		_, err := db.SQL.ExecContext(t.Context(),
			"INSERT INTO маршрутные_карты (Номер_бланка, Учетный_номер, Номер_кластера, Статус, Дата_создания, Путь_к_файлу) VALUES (?, ?, ?, ?, ?, ?)",
			r...)
		require.NoError(t, err)
	}
}

func openUnmigrated(t *testing.T) *repository.DB {
	t.Helper()

	db, err := repository.Open(t.Context(), repository.Config{
		DSN: filepath.Join(t.TempDir(), "маршрутные_карты.db"),
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, discardLogger()) })
	return db
}

func Test_Migrate_Imports_First_Generation_Ledger(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := openUnmigrated(t)
	seedFirstGenerationLedger(t, db)

	require.NoError(t, repository.Migrate(ctx, db, discardLogger()))
	repo := repository.NewRouteCardRepository(db, discardLogger())

	exists, err := repo.Exists(ctx, "000043")
	require.NoError(t, err)
	assert.True(t, exists, "numbers issued by the first generation stay taken")

	found, err := repo.FindExisting(ctx, []string{"000041", "000042", "000043", "000044", "000045"})
	require.NoError(t, err)
	assert.Equal(t, []string{"000043", "000044", "000045"}, found)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "repeated legacy numbers collapse to the first row")

	first, err := repo.Get(ctx, "000043")
	require.NoError(t, err)
	assert.Nil(t, first.AccountNumber)
	assert.Nil(t, first.ClusterNumber)
	assert.Nil(t, first.Status)
	assert.Equal(t, "route_cards/маршрутная_карта_000043.pptx", first.OutputPath)
	assert.True(t, time.Date(2025, 3, 14, 10, 20, 30, 0, time.Local).Equal(first.CreatedAt), "got %s", first.CreatedAt)

	second, err := repo.Get(ctx, "000044")
	require.NoError(t, err)
	require.NotNil(t, second.AccountNumber)
	assert.Equal(t, "ACC-7", *second.AccountNumber)

	_, err = repo.Append(ctx, card("000044"))
	require.Error(t, err, "imported numbers are protected by the unique constraint")
}

func Test_Migrate_Imports_Legacy_Rows_Once(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := openUnmigrated(t)
	seedFirstGenerationLedger(t, db)

	require.NoError(t, repository.Migrate(ctx, db, discardLogger()))
	require.NoError(t, repository.Migrate(ctx, db, discardLogger()))

	imported, err := repository.ImportLegacy(ctx, db, nil)
	require.NoError(t, err)
	assert.Zero(t, imported)

	n, err := repository.NewRouteCardRepository(db, discardLogger()).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func Test_ImportLegacy_Skips_Numbers_Already_In_Ledger(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := openLedger(t)
	repo := repository.NewRouteCardRepository(db, discardLogger())
	_, err := repo.Append(ctx, card("000044"))
	require.NoError(t, err)

	seedFirstGenerationLedger(t, db)
	imported, err := repository.ImportLegacy(ctx, db, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, imported)

	kept, err := repo.Get(ctx, "000044")
	require.NoError(t, err)
	assert.Equal(t, card("000044").OutputPath, kept.OutputPath)
}

func Test_ImportLegacy_Without_Legacy_Table_Is_NoOp(t *testing.T) {
	t.Parallel()

	imported, err := repository.ImportLegacy(t.Context(), openLedger(t), nil)
	require.NoError(t, err)
	assert.Zero(t, imported)
}
