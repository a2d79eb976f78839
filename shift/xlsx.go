package shift

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// SPREADSHEET IMPORT / EXPORT
// =============================================================================
//
// Batch workbooks: the first sheet, first row is the header. Known columns
// map onto ShiftInput; every other column is a report_data metric. Blank
// rows are skipped and every returned row carries its sheet row number.
// Cells are read unformatted, so date cells arrive as Excel serials. A row
// whose cells cannot be decoded is still returned and fails on its own when
// the batch runs.

// Standard batch columns, in the order WriteBatchWorkbook emits them.
var batchColumns = []string{
	"employee_id", "club_id", "check_in", "check_out", "total_hours",
	"cash_income", "card_income", "expenses",
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseBatchWorkbook reads batch rows from an .xlsx stream.
func ParseBatchWorkbook(r io.Reader) ([]ShiftInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &compensation.ValidationError{Field: "file", Message: fmt.Sprintf("not a readable workbook: %v", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &compensation.ValidationError{Field: "file", Message: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, &compensation.ValidationError{Field: "file", Message: "workbook has no header row"}
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	out := make([]ShiftInput, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if blankRow(cells) {
			continue
		}
		in := parseBatchRow(header, cells, date1904)
		in.Row = i + 2
		out = append(out, in)
	}
	return out, nil
}

func parseBatchRow(header, cells []string, date1904 bool) ShiftInput {
	var in ShiftInput
	for i, name := range header {
		if name == "" || i >= len(cells) {
			continue
		}
		v := strings.TrimSpace(cells[i])
		if v == "" {
			continue
		}
		if err := in.setColumn(name, v, date1904); err != nil {
			in.parseErr = err
			return in
		}
	}
	return in
}

func (in *ShiftInput) setColumn(name, v string, date1904 bool) error {
	switch name {
	case "employee_id":
		in.EmployeeID = v
	case "club_id":
		in.ClubID = v
	case "check_in":
		t, err := parseCellTime(name, v, date1904)
		if err != nil {
			return err
		}
		in.CheckIn = t
	case "check_out":
		t, err := parseCellTime(name, v, date1904)
		if err != nil {
			return err
		}
		in.CheckOut = &t
	default:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return &compensation.ValidationError{Field: name, Message: fmt.Sprintf("%q is not a number", v)}
		}
		switch name {
		case "total_hours":
			in.TotalHours = &d
		case "cash_income":
			in.CashIncome = d
		case "card_income":
			in.CardIncome = d
		case "expenses":
			in.Expenses = d
		default:
			if in.ReportData == nil {
				in.ReportData = map[string]decimal.Decimal{}
			}
			in.ReportData[name] = d
		}
	}
	return nil
}

func parseCellTime(field, v string, date1904 bool) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, date1904); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &compensation.ValidationError{Field: field, Message: fmt.Sprintf("%q is not a timestamp", v)}
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteBatchWorkbook writes rows in the layout ParseBatchWorkbook reads.
// With no rows it produces an empty template.
func WriteBatchWorkbook(w io.Writer, rows []ShiftInput) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Shifts"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	metricSet := map[string]bool{}
	for _, r := range rows {
		for k := range r.ReportData {
			metricSet[k] = true
		}
	}
	metrics := make([]string, 0, len(metricSet))
	for k := range metricSet {
		metrics = append(metrics, k)
	}
	sort.Strings(metrics)

	header := append(append([]string{}, batchColumns...), metrics...)
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for r, in := range rows {
		values := []interface{}{
			in.EmployeeID,
			in.ClubID,
			in.CheckIn.UTC().Format(time.RFC3339),
			"",
			"",
			in.CashIncome.String(),
			in.CardIncome.String(),
			in.Expenses.String(),
		}
		if in.CheckOut != nil {
			values[3] = in.CheckOut.UTC().Format(time.RFC3339)
		}
		if in.TotalHours != nil {
			values[4] = in.TotalHours.String()
		}
		for _, k := range metrics {
			if v, ok := in.ReportData[k]; ok {
				values = append(values, v.String())
			} else {
				values = append(values, "")
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// WriteHistoryWorkbook exports an apportioned history as .xlsx.
func WriteHistoryWorkbook(w io.Writer, h *History) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Payroll " + h.Month
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headers := []string{"Shift ID", "Check-in", "Check-out", "Type", "Status", "Hours", "Revenue", "Salary", "KPI bonus"}
	for i, hdr := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, hdr)
	}

	row := 2
	for _, e := range h.Shifts {
		sh := e.Shift
		checkOut := ""
		if sh.CheckOut != nil {
			checkOut = sh.CheckOut.Format("2006-01-02 15:04")
		}
		values := []interface{}{
			sh.ID,
			sh.CheckIn.Format("2006-01-02 15:04"),
			checkOut,
			string(sh.ShiftType),
			string(sh.Status),
			sh.TotalHours.InexactFloat64(),
			sh.TotalRevenue().InexactFloat64(),
			sh.CalculatedSalary.InexactFloat64(),
			e.KPIBonus.InexactFloat64(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		row++
	}

	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("H%d", row), h.TotalSalary.InexactFloat64())
	f.SetCellValue(sheet, fmt.Sprintf("I%d", row), h.KPIBonusTotal.InexactFloat64())

	return f.Write(w)
}
