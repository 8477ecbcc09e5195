package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"lpr-service/internal/domain/plate"
)

const sheetName = "Plates"

var headers = []string{"Plate Number", "Prefix", "Origin", "Expiry (MM-YY)", "Remaining Days", "Observed At"}

// PlatesXLSX renders records as a single-sheet workbook. Timestamps are shown
// in loc.
func PlatesXLSX(records []plate.Record, loc *time.Location) (*bytes.Buffer, error) {
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetRowStyle(sheetName, 1, 1, headerStyle); err != nil {
		return nil, err
	}

	for i, rec := range records {
		row := i + 2
		var remaining any = ""
		if rec.RemainingDays != nil {
			remaining = *rec.RemainingDays
		}
		values := []any{
			rec.PlateNumber,
			plate.PlatePrefix(rec.PlateNumber),
			rec.PlateOrigin,
			rec.ExpiryToken,
			remaining,
			plate.FormatObserved(rec.ObservedAt.In(loc)),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 18)
	_ = f.SetColWidth(sheetName, "C", "C", 40)
	_ = f.SetColWidth(sheetName, "F", "F", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}
