// Package report renders return case timelines into spreadsheets.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/ledger"
	"github.com/garyjia/marketplace-returns/internal/application/port"
)

const (
	sheetSummary   = "Summary"
	sheetTracking  = "Tracking"
	sheetDurations = "Durations"

	timeLayout = "2006-01-02 15:04:05"
)

// TimelineSource loads a case timeline
type TimelineSource interface {
	Timeline(ctx context.Context, caseID int64) (*ledger.Timeline, error)
}

// TimelineExporter writes XLSX timelines to file storage
type TimelineExporter struct {
	source  TimelineSource
	storage port.FileStorage
	logger  *zap.Logger
}

// NewTimelineExporter creates an exporter
func NewTimelineExporter(source TimelineSource, storage port.FileStorage, logger *zap.Logger) *TimelineExporter {
	return &TimelineExporter{source: source, storage: storage, logger: logger}
}

// Export builds the workbook for caseID and stores it under
// exports/<return number>.xlsx. It returns the relative path.
func (e *TimelineExporter) Export(ctx context.Context, caseID int64) (string, error) {
	tl, err := e.source.Timeline(ctx, caseID)
	if err != nil {
		return "", err
	}

	content, err := Workbook(tl)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("exports/%s.xlsx", tl.Case.ReturnNumber)
	if err := e.storage.Save(ctx, path, content); err != nil {
		return "", fmt.Errorf("failed to store timeline export: %w", err)
	}

	e.logger.Info("Timeline exported",
		zap.Int64("case_id", caseID),
		zap.String("path", path),
		zap.Int("entries", len(tl.Entries)))

	return path, nil
}

// Workbook renders tl into XLSX bytes
func Workbook(tl *ledger.Timeline) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{sheetTracking, sheetDurations} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	rc := tl.Case
	summary := [][]interface{}{
		{"Return number", rc.ReturnNumber},
		{"Order", rc.OrderNumber},
		{"Product", rc.ProductName},
		{"Customer", rc.CustomerName},
		{"Vendor", rc.VendorName},
		{"Type", string(rc.ReturnType)},
		{"Reason", string(rc.Reason)},
		{"Quantity", rc.Quantity},
		{"Refund amount", rc.RefundAmount.StringFixed(2) + " " + rc.Currency},
		{"Status", string(rc.Status)},
		{"Created", rc.CreatedAt.UTC().Format(timeLayout)},
		{"Total time", ledger.Total(tl.Durations).Round(time.Second).String()},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return nil, err
	}

	tracking := [][]interface{}{{"#", "Status", "Description", "Location", "Actor", "Actor ID", "Timestamp (UTC)"}}
	for i, entry := range tl.Entries {
		tracking = append(tracking, []interface{}{
			i + 1,
			string(entry.Status),
			entry.Description,
			entry.Location,
			string(entry.ActorType),
			entry.ActorID,
			entry.Timestamp.UTC().Format(timeLayout),
		})
	}
	if err := writeRows(f, sheetTracking, tracking); err != nil {
		return nil, err
	}

	durations := [][]interface{}{{"Status", "Entered (UTC)", "Exited (UTC)", "Hours", "Current"}}
	for _, d := range tl.Durations {
		exited := ""
		if d.ExitedAt != nil {
			exited = d.ExitedAt.UTC().Format(timeLayout)
		}
		durations = append(durations, []interface{}{
			string(d.State),
			d.EnteredAt.UTC().Format(timeLayout),
			exited,
			d.Duration.Hours(),
			d.Current,
		})
	}
	if err := writeRows(f, sheetDurations, durations); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
