package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnknownFormat is returned for an output format with no exporter.
var ErrUnknownFormat = errors.New("export: unknown format")

// Exporter writes rows to w.
type Exporter interface {
	Export(w io.Writer, rows []Row) error
	Ext() string
}

// New returns the exporter for a format name ("csv" or "xlsx").
func New(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "csv":
		return CSVExporter{}, nil
	case "xlsx":
		return XLSXExporter{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteFile picks the exporter from the file extension and writes rows to
// path.
func WriteFile(path string, rows []Row) error {
	exp, err := New(filepath.Ext(path))
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: creating %s: %w", path, err)
	}
	if err := exp.Export(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CSVExporter writes a header line followed by one record per row.
type CSVExporter struct{}

func (CSVExporter) Ext() string { return ".csv" }

func (CSVExporter) Export(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("export: writing csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("export: writing csv row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DefaultSheet is the worksheet name used by XLSXExporter.
const DefaultSheet = "questions"

// XLSXExporter writes one worksheet with a header row.
type XLSXExporter struct {
	Sheet string
}

func (XLSXExporter) Ext() string { return ".xlsx" }

func (e XLSXExporter) Export(w io.Writer, rows []Row) error {
	sheet := e.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("export: naming sheet: %w", err)
	}
	if err := setRow(f, sheet, 1, Header); err != nil {
		return err
	}
	for i, r := range rows {
		if err := setRow(f, sheet, i+2, r.Record()); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export: freezing header: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: writing xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("export: cell name: %w", err)
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("export: writing row %d: %w", row, err)
	}
	return nil
}
