// Package report renders the booking list for a date as a spreadsheet
// staff can hand to the front desk or archive.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"tablemgr/internal/ledger"
	"tablemgr/internal/models"
)

// Writer builds one report workbook.
type Writer struct {
	file       *excelize.File
	sheet      string
	currentRow int
}

// NewWriter creates an empty workbook.
func NewWriter() *Writer {
	return &Writer{file: excelize.NewFile()}
}

// addSheet names the active sheet, truncated to the 31-char Excel limit.
func (w *Writer) addSheet(name string) {
	if len(name) > 31 {
		name = name[:31]
	}
	w.file.SetSheetName("Sheet1", name)
	w.sheet = name
	w.currentRow = 1
}

func (w *Writer) writeHeader(columns []string) error {
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, col); err != nil {
			return err
		}
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.sheet, startCell, endCell, style)
	}

	w.currentRow++
	return nil
}

func (w *Writer) writeRow(row []interface{}) error {
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, val); err != nil {
			return err
		}
	}
	w.currentRow++
	return nil
}

// Save writes the workbook to the writer.
func (w *Writer) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// Close releases resources.
func (w *Writer) Close() error {
	return w.file.Close()
}

var bookingColumns = []string{
	"Time", "Guest", "Phone", "Email", "Party Size", "Duration (min)", "Table", "Status", "Special Requests",
}

// DayReport renders every booking for a date, sorted by time, into a new
// workbook.
func DayReport(ctx context.Context, lg *ledger.Ledger, date string) (*Writer, error) {
	bookings, err := lg.ListForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	w := NewWriter()
	w.addSheet(fmt.Sprintf("Bookings %s", date))
	if err := w.writeHeader(bookingColumns); err != nil {
		w.Close()
		return nil, err
	}
	for i := range bookings {
		if err := w.writeRow(bookingRow(&bookings[i])); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}

func bookingRow(b *models.Booking) []interface{} {
	return []interface{}{
		b.Time, b.GuestName, b.Phone, b.Email, b.PartySize, b.Duration, b.TableID, string(b.Status), b.SpecialRequests,
	}
}
