package review

import (
	"fmt"
	"io"
	"strings"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	reportSheet = "Report"
	photoSheet  = "Photos"
)

// pictureExtensions lists the photo types excelize can embed.
var pictureExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
}

// ExcelExporter writes a View as an XLSX workbook.
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// sheetWriter tracks the next free row of a sheet.
type sheetWriter struct {
	f      *excelize.File
	sheet  string
	row    int
	bold   int
	logger *zap.Logger
}

// Write renders v into a workbook and writes it to w.
func (e *ExcelExporter) Write(w io.Writer, v View) error {
	f, err := e.build(v)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveAs renders v into a workbook at path.
func (e *ExcelExporter) SaveAs(path string, v View) error {
	f, err := e.build(v)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}

	e.logger.Info("Review exported",
		zap.String("report_type", v.ReportType),
		zap.String("draft_id", v.DraftID),
		zap.String("output_path", path))
	return nil
}

func (e *ExcelExporter) build(v View) (*excelize.File, error) {
	if !v.Found {
		return nil, &entity.NotFoundError{ReportType: v.ReportType, ID: v.DraftID}
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	sw := &sheetWriter{f: f, sheet: reportSheet, row: 1, bold: bold, logger: e.logger}
	sw.heading(v.Title, title)
	if v.DraftID != "" {
		sw.pair("Draft", v.DraftID)
	}
	if v.SavedAt != "" {
		sw.pair("Saved", v.SavedAt)
	}
	sw.skip()

	for _, g := range v.Groups {
		sw.heading(g.Title, bold)
		for _, item := range g.Items {
			sw.pair(item.Label, item.Value)
		}
		for _, t := range g.Tables {
			sw.table(t)
		}
		sw.skip()
	}

	for _, t := range v.Sections {
		sw.table(t)
		sw.skip()
	}

	if len(v.Summaries) > 0 {
		sw.heading("Summary", bold)
		for _, item := range v.Summaries {
			sw.pair(item.Label, item.Value)
		}
		sw.skip()
	}

	sw.heading("Signature", bold)
	sw.pair("Prepared By", v.PreparedBy)
	sw.pair("Date", v.SigDate)
	signed := "No"
	if v.Signature != "" {
		signed = "Yes"
	}
	sw.pair("Signed", signed)

	if err := f.SetColWidth(reportSheet, "A", "A", 28); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(reportSheet, "B", "H", 22); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}

	if len(v.Photos) > 0 {
		if err := e.addPhotos(f, v.Photos, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (e *ExcelExporter) addPhotos(f *excelize.File, photos []PhotoView, bold int) error {
	if _, err := f.NewSheet(photoSheet); err != nil {
		return fmt.Errorf("failed to create photo sheet: %w", err)
	}
	sw := &sheetWriter{f: f, sheet: photoSheet, row: 1, bold: bold, logger: e.logger}

	for _, p := range photos {
		sw.heading(p.Name, bold)
		if p.CapturedAt != "" {
			sw.pair("Captured", p.CapturedAt)
		}

		contentType, data, err := entity.DecodeDataURI(p.DataURI)
		ext, embeddable := pictureExtensions[contentType]
		if err != nil || !embeddable {
			sw.pair("Image", "not embeddable ("+contentType+")")
			sw.skip()
			continue
		}

		cell, _ := excelize.CoordinatesToCellName(1, sw.row)
		err = f.AddPictureFromBytes(photoSheet, cell, &excelize.Picture{
			Extension: ext,
			File:      data,
			Format: &excelize.GraphicOptions{
				AltText:         p.Name,
				LockAspectRatio: true,
				ScaleX:          0.5,
				ScaleY:          0.5,
			},
		})
		if err != nil {
			e.logger.Warn("Failed to embed photo",
				zap.String("name", p.Name),
				zap.Error(err))
			sw.pair("Image", "could not be embedded")
			sw.skip()
			continue
		}
		// leave room below the picture
		sw.row += 20
	}
	return nil
}

func (w *sheetWriter) skip() {
	w.row++
}

func (w *sheetWriter) heading(text string, style int) {
	cell := w.cell(1)
	w.set(cell, text)
	if err := w.f.SetCellStyle(w.sheet, cell, cell, style); err != nil {
		w.logger.Warn("Failed to set cell style", zap.String("cell", cell), zap.Error(err))
	}
	w.row++
}

func (w *sheetWriter) pair(label, value string) {
	label = strings.TrimSpace(label)
	labelCell := w.cell(1)
	w.set(labelCell, label)
	if err := w.f.SetCellStyle(w.sheet, labelCell, labelCell, w.bold); err != nil {
		w.logger.Warn("Failed to set cell style", zap.String("cell", labelCell), zap.Error(err))
	}
	w.set(w.cell(2), value)
	w.row++
}

func (w *sheetWriter) table(t Table) {
	w.heading(t.Label, w.bold)
	for i, c := range t.Columns {
		cell := w.cell(i + 1)
		w.set(cell, c.Label)
		if err := w.f.SetCellStyle(w.sheet, cell, cell, w.bold); err != nil {
			w.logger.Warn("Failed to set cell style", zap.String("cell", cell), zap.Error(err))
		}
	}
	w.row++
	for _, row := range t.Rows {
		for i, value := range row {
			w.set(w.cell(i+1), value)
		}
		w.row++
	}
}

func (w *sheetWriter) cell(col int) string {
	name, _ := excelize.CoordinatesToCellName(col, w.row)
	return name
}

// set sets a cell value, logging instead of failing the export
func (w *sheetWriter) set(cell, value string) {
	if err := w.f.SetCellValue(w.sheet, cell, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("sheet", w.sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}
