package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/repository"
)

// SheetName is the worksheet holding the ledger rows.
const SheetName = "Route Cards"

var headers = []string{
	"Form Number",
	"Account Number",
	"Cluster Number",
	"Status",
	"Created At (UTC)",
	"Output Path",
}

// Service produces XLSX exports of the ledger.
type Service struct {
	ledger repository.RouteCardRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(ledger repository.RouteCardRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, logger: logger, now: time.Now}
}

// ExportRouteCardsXLSX returns an XLSX workbook (as bytes) for the given creation-date window.
// Dates are whole UTC days and both ends are inclusive.
// If only from is provided -> from..today.
// If only to is provided   -> beginning..to.
// If neither is provided   -> the whole ledger.
func (s *Service) ExportRouteCardsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	filter := repository.ListFilter{}
	if from != nil {
		f := day(*from)
		filter.CreatedFrom = &f
	}
	if to == nil && from != nil {
		today := s.now()
		to = &today
	}
	if to != nil {
		t := day(*to).Add(24*time.Hour - time.Nanosecond)
		filter.CreatedTo = &t
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo) {
		return nil, common.InvalidInputErrorf("export window starts %s after it ends %s",
			filter.CreatedFrom.Format(time.DateOnly), filter.CreatedTo.Format(time.DateOnly))
	}

	cards, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for i, c := range cards {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		write(1, c.FormNumber)
		write(2, deref(c.AccountNumber))
		write(3, deref(c.ClusterNumber))
		write(4, deref(c.Status))
		write(5, c.CreatedAt.UTC().Format(time.DateTime))
		write(6, c.OutputPath)
	}

	_ = f.SetColWidth(SheetName, "A", "A", 14) // number
	_ = f.SetColWidth(SheetName, "B", "D", 18)
	_ = f.SetColWidth(SheetName, "E", "E", 20) // created
	_ = f.SetColWidth(SheetName, "F", "F", 60) // path
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(cards),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteFile exports to path, replacing any existing file atomically.
func (s *Service) WriteFile(ctx context.Context, path string, from, to *time.Time) error {
	data, err := s.ExportRouteCardsXLSX(ctx, from, to)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return common.StorageError("create export directory", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return common.StorageError("write export "+path, err)
	}
	return nil
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
