// Package audit maintains the spreadsheet trail the shop keeps alongside
// the database: purchase and sales workbooks partitioned by financial
// year, a customer workbook and a loyalty workbook. Writes here are
// best-effort from the caller's point of view; the database stays the
// source of truth.
package audit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/finyear"
)

// EntryByCarryForward marks opening-stock rows written at the start of a
// financial year.
const EntryByCarryForward = "carry_forward"

var purchaseHeaders = []string{
	"Invoice No", "Date", "Vendor", "Product", "Qty", "Unit",
	"MRP", "GST %", "Expiry", "Category", "Entry By",
}

// VendorWise carries the same line items re-keyed by vendor. Old
// workbooks already have this shape; the column order is load-bearing.
var vendorWiseHeaders = []string{
	"Vendor", "Invoice No", "Date", "Product", "Qty", "Unit",
	"MRP", "GST %", "Expiry", "Category", "Entry By",
}

type Sink struct {
	dir string
	mu  sync.Mutex
}

func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Sink{dir: dir}, nil
}

func (s *Sink) Dir() string { return s.dir }

// openOrCreate opens an existing workbook or builds a new one with the
// given sheets, each seeded with its header row. The sheet order follows
// the headers map iteration via sheetNames.
func openOrCreate(path string, sheetNames []string, headers map[string][]string) (*excelize.File, error) {
	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetNames[0]); err != nil {
		return nil, err
	}
	for _, name := range sheetNames[1:] {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	for _, name := range sheetNames {
		if err := setRow(f, name, 1, toAnySlice(headers[name])); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// PurchaseRow is one Invoices-sheet row: a single invoice line plus its
// header fields, the shape the workbook stores.
type PurchaseRow struct {
	InvoiceNo string
	Date      time.Time
	Vendor    string
	Item      domain.PurchaseItem
	EntryBy   string
}

// AppendInvoice appends one row per invoice item to the purchase workbook
// of the invoice's financial year, mirroring each row onto VendorWise.
func (s *Sink) AppendInvoice(invoice domain.PurchaseInvoice) error {
	rows := make([]PurchaseRow, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		rows = append(rows, PurchaseRow{
			InvoiceNo: invoice.InvoiceNo,
			Date:      invoice.Date,
			Vendor:    invoice.Vendor,
			Item:      item,
			EntryBy:   invoice.EntryBy,
		})
	}
	return s.AppendPurchaseRows(finyear.Label(invoice.Date), rows)
}

func (s *Sink) AppendPurchaseRows(fyLabel string, rows []PurchaseRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := finyear.PurchasePathForLabel(s.dir, fyLabel)
	f, err := openOrCreate(path, []string{"Invoices", "VendorWise"}, map[string][]string{
		"Invoices":   purchaseHeaders,
		"VendorWise": vendorWiseHeaders,
	})
	if err != nil {
		return err
	}
	defer f.Close()

	existing, err := f.GetRows("Invoices")
	if err != nil {
		return err
	}
	next := len(existing) + 1
	vendorRows, err := f.GetRows("VendorWise")
	if err != nil {
		return err
	}
	nextVendor := len(vendorRows) + 1
	for i, row := range rows {
		err := setRow(f, "Invoices", next+i, []any{
			row.InvoiceNo,
			row.Date.Format(domain.DateLayout),
			row.Vendor,
			row.Item.Product,
			row.Item.Qty,
			row.Item.Unit,
			row.Item.MRP,
			row.Item.GSTRate,
			row.Item.Expiry,
			string(row.Item.Category),
			row.EntryBy,
		})
		if err != nil {
			return err
		}
		err = setRow(f, "VendorWise", nextVendor+i, []any{
			row.Vendor,
			row.InvoiceNo,
			row.Date.Format(domain.DateLayout),
			row.Item.Product,
			row.Item.Qty,
			row.Item.Unit,
			row.Item.MRP,
			row.Item.GSTRate,
			row.Item.Expiry,
			string(row.Item.Category),
			row.EntryBy,
		})
		if err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

// RemoveInvoice deletes every Invoices row carrying the invoice number
// from the purchase workbook of the given date's financial year.
func (s *Sink) RemoveInvoice(date time.Time, invoiceNo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := finyear.PurchasePath(s.dir, date)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Invoice No sits in column A on Invoices and column B on VendorWise.
	for sheet, col := range map[string]int{"Invoices": 0, "VendorWise": 1} {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return err
		}
		// Bottom-up so earlier indexes stay valid while removing.
		for i := len(rows) - 1; i >= 1; i-- {
			if cell(rows[i], col) == invoiceNo {
				if err := f.RemoveRow(sheet, i+1); err != nil {
					return err
				}
			}
		}
	}
	return f.SaveAs(path)
}

// ReadPurchaseRows returns every data row of the Invoices sheet for a
// financial year, or nil when the workbook does not exist.
func (s *Sink) ReadPurchaseRows(fyLabel string) ([]PurchaseRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readPurchaseRowsLocked(fyLabel)
}

func (s *Sink) readPurchaseRowsLocked(fyLabel string) ([]PurchaseRow, error) {
	path := finyear.PurchasePathForLabel(s.dir, fyLabel)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := f.GetRows("Invoices")
	if err != nil {
		return nil, err
	}

	rows := make([]PurchaseRow, 0, len(raw))
	for i, cells := range raw {
		if i == 0 || len(cells) < 5 {
			continue
		}
		row := PurchaseRow{
			InvoiceNo: cell(cells, 0),
			Vendor:    cell(cells, 2),
			Item: domain.PurchaseItem{
				Product:  cell(cells, 3),
				Unit:     cell(cells, 5),
				GSTRate:  cell(cells, 7),
				Expiry:   cell(cells, 8),
				Category: domain.Category(cell(cells, 9)),
			},
			EntryBy: cell(cells, 10),
		}
		row.Date, _ = time.Parse(domain.DateLayout, cell(cells, 1))
		row.Item.Qty, _ = strconv.ParseFloat(cell(cells, 4), 64)
		row.Item.MRP, _ = strconv.ParseFloat(cell(cells, 6), 64)
		if row.Item.Product == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(cells []string, idx int) string {
	if idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

// OpeningKey is the composite identity used when carrying stock forward
// across financial years.
func OpeningKey(item domain.PurchaseItem) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(item.Product)),
		strings.TrimSpace(item.Unit),
		strconv.FormatFloat(item.MRP, 'f', 2, 64),
		strings.TrimSpace(item.GSTRate),
		strings.TrimSpace(item.Expiry),
		string(item.Category))
}
