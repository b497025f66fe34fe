package export_test

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/entity"
	"github.com/joseph-ayodele/routecards/internal/export"
	"github.com/joseph-ayodele/routecards/internal/repository"
)

func ptr(s string) *string { return &s }

func seeded(t *testing.T) repository.RouteCardRepository {
	t.Helper()

	ledger := repository.NewMemoryRouteCardRepository()
	records := []*entity.RouteCard{
		{FormNumber: "000002", OutputPath: "route_cards/route_card_000002.pptx", CreatedAt: time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)},
		{FormNumber: "000001", OutputPath: "route_cards/route_card_000001.pptx", CreatedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
			AccountNumber: ptr("ACC-7"), ClusterNumber: ptr("C2"), Status: ptr("closed")},
		{FormNumber: "000003", OutputPath: "route_cards/route_card_000003.pptx", CreatedAt: time.Date(2026, 10, 19, 0, 0, 1, 0, time.UTC)},
	}
	for _, r := range records {
		_, err := ledger.Append(t.Context(), r)
		require.NoError(t, err)
	}
	return ledger
}

func rows(t *testing.T, data []byte) [][]string {
	t.Helper()

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	out, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	return out
}

func Test_Export_Writes_All_Records_In_Number_Order(t *testing.T) {
	t.Parallel()

	svc := export.NewService(seeded(t), slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, err := svc.ExportRouteCardsXLSX(t.Context(), nil, nil)
	require.NoError(t, err)

	got := rows(t, data)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"Form Number", "Account Number", "Cluster Number", "Status", "Created At (UTC)", "Output Path"}, got[0])
	assert.Equal(t, []string{"000001", "ACC-7", "C2", "CLOSED", "2026-10-01 09:00:00", "route_cards/route_card_000001.pptx"}, got[1])
	assert.Equal(t, "000002", got[2][0])
	assert.Equal(t, "000003", got[3][0])
}

func Test_Export_Filters_By_Inclusive_Day_Window(t *testing.T) {
	t.Parallel()

	svc := export.NewService(seeded(t), nil)
	day := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)

	data, err := svc.ExportRouteCardsXLSX(t.Context(), &day, &day)
	require.NoError(t, err)
	got := rows(t, data)
	require.Len(t, got, 2)
	assert.Equal(t, "000002", got[1][0])

	to := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	data, err = svc.ExportRouteCardsXLSX(t.Context(), nil, &to)
	require.NoError(t, err)
	assert.Len(t, rows(t, data), 3)
}

func Test_Export_Rejects_Inverted_Window(t *testing.T) {
	t.Parallel()

	svc := export.NewService(seeded(t), nil)
	from := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.ExportRouteCardsXLSX(t.Context(), &from, &to)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func Test_WriteFile_Creates_Workbook(t *testing.T) {
	t.Parallel()

	svc := export.NewService(seeded(t), nil)
	path := filepath.Join(t.TempDir(), "exports", "ledger.xlsx")

	require.NoError(t, svc.WriteFile(t.Context(), path, nil, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	got, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}
