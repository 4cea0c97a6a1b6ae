package audit

import (
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/finyear"
)

var billsHeaders = []string{
	"Bill Number", "Date", "Customer Name", "Mobile", "Village", "Aadhar",
	"Product Details", "Subtotal", "Discount", "GST Total", "Total",
	"Payment Mode", "Cash Amount", "UPI Amount", "Entry By",
}

// The derived sheets are append-only per-row mirrors of the bill, the
// shape old workbooks already carry.
var (
	customerWiseHeaders = []string{"Customer Name", "Mobile", "Village", "Aadhar", "Entry By"}
	productWiseHeaders  = []string{"Product Name", "Quantity Sold", "Sale Price", "Bill No", "Date", "Entry By"}
	categoryWiseHeaders = []string{
		"Bill Number", "Date", "Customer Name", "Mobile", "Product Name",
		"Quantity", "Sale Price", "Category", "Entry By",
	}
)

var salesSheets = []string{"Bills", "CustomerWise", "ProductWise", "CategoryWise"}

func salesHeaderMap() map[string][]string {
	return map[string][]string{
		"Bills":        billsHeaders,
		"CustomerWise": customerWiseHeaders,
		"ProductWise":  productWiseHeaders,
		"CategoryWise": categoryWiseHeaders,
	}
}

// AppendBill appends the bill to both the financial-year and the
// calendar-month sales workbooks. categories maps normalized product
// keys to their taxonomy bucket; lines without a bucket stay off the
// CategoryWise sheet.
func (s *Sink) AppendBill(bill domain.Bill, categories map[string]domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range []string{
		finyear.SalesFYPath(s.dir, bill.DateTime),
		finyear.SalesMonthPath(s.dir, bill.DateTime),
	} {
		if err := appendBillTo(path, bill, categories); err != nil {
			return err
		}
	}
	return nil
}

func appendBillTo(path string, bill domain.Bill, categories map[string]domain.Category) error {
	f, err := openOrCreate(path, salesSheets, salesHeaderMap())
	if err != nil {
		return err
	}
	defer f.Close()

	date := bill.DateTime.Format(domain.DateTimeLayout)

	if err := appendRow(f, "Bills", []any{
		bill.BillNumber,
		date,
		bill.Customer.Name,
		bill.Customer.Mobile,
		bill.Customer.Village,
		bill.Customer.Aadhar,
		EncodeProductDetails(bill.Items),
		bill.Subtotal,
		bill.Discount,
		bill.GSTTotal,
		bill.Total,
		bill.Payment.Mode,
		bill.Payment.CashAmt,
		bill.Payment.UPIAmt,
		bill.EntryBy,
	}); err != nil {
		return err
	}

	if err := appendRow(f, "CustomerWise", []any{
		bill.Customer.Name,
		bill.Customer.Mobile,
		bill.Customer.Village,
		bill.Customer.Aadhar,
		bill.EntryBy,
	}); err != nil {
		return err
	}

	for _, item := range bill.Items {
		if err := appendRow(f, "ProductWise", []any{
			item.Product, item.Qty, item.Price, bill.BillNumber, date, bill.EntryBy,
		}); err != nil {
			return err
		}
		cat := categories[domain.NormalizeProductKey(item.Product)]
		if cat == domain.CategoryNone {
			continue
		}
		if err := appendRow(f, "CategoryWise", []any{
			bill.BillNumber,
			date,
			bill.Customer.Name,
			bill.Customer.Mobile,
			item.Product,
			item.Qty,
			item.Price,
			string(cat),
			bill.EntryBy,
		}); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func appendRow(f *excelize.File, sheet string, values []any) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	return setRow(f, sheet, len(rows)+1, values)
}

// MaxBillNumber scans every financial-year sales workbook in the data
// directory and returns the highest bill number found. Used to seed the
// bill sequence so numbering survives a wiped database.
func (s *Sink) MaxBillNumber() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, "Sales_FY_*.xlsx"))
	if err != nil {
		return 0, err
	}

	var max int64
	for _, path := range paths {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return 0, err
		}
		rows, err := f.GetRows("Bills")
		f.Close()
		if err != nil {
			return 0, err
		}
		for i, cells := range rows {
			if i == 0 {
				continue
			}
			n, err := strconv.ParseInt(cell(cells, 0), 10, 64)
			if err != nil {
				continue
			}
			if n > max {
				max = n
			}
		}
	}
	return max, nil
}
