package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dealdocs/contractocr/internal/store"
)

// Service produces XLSX workbooks from the extraction run history.
type Service struct {
	runs   *store.RunStore
	logger *slog.Logger
}

func NewService(runs *store.RunStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

// ExportRunsXLSX returns a workbook with one row per recorded run. limit <= 0
// exports everything.
func (s *Service) ExportRunsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Extractions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Processed At",
		"Document",
		"Status",
		"Buyer Name",
		"Seller Name",
		"Property Address",
		"Offer Price",
		"Key Dates",
		"Failed Stage",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range runs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		write(2, r.DocumentPath)
		write(3, string(r.Status))
		write(4, r.Record.BuyerName)
		write(5, r.Record.SellerName)
		write(6, r.Record.PropertyAddress)
		write(7, r.Record.OfferPrice)
		write(8, r.Record.KeyDates)
		write(9, r.FailedStage)
		write(10, r.Error)
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}

	s.logger.Info("exported runs",
		"rows", len(runs),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
