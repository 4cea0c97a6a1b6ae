package audit

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/finyear"
)

func sheetRows(t *testing.T, path string, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("rows of %s: %v", sheet, err)
	}
	return rows
}

func testSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := NewSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	return sink
}

func sampleInvoice(no string, date time.Time) domain.PurchaseInvoice {
	return domain.PurchaseInvoice{
		InvoiceNo: no,
		Date:      date,
		Vendor:    "AgriVet Traders",
		EntryBy:   "admin",
		Items: []domain.PurchaseItem{
			{Product: "Urea 45kg", Qty: 10, Unit: "bag", MRP: 320, GSTRate: "5", Category: domain.CategoryFertilizer},
			{Product: "Paddy Seed", Qty: 4, Unit: "kg", MRP: 90, GSTRate: "NIL", Expiry: "01-06-2026", Category: domain.CategorySeeds},
		},
	}
}

func TestAppendAndReadPurchaseRows(t *testing.T) {
	sink := testSink(t)
	date := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)

	if err := sink.AppendInvoice(sampleInvoice("INV-1", date)); err != nil {
		t.Fatalf("AppendInvoice: %v", err)
	}

	rows, err := sink.ReadPurchaseRows("2025-2026")
	if err != nil {
		t.Fatalf("ReadPurchaseRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].InvoiceNo != "INV-1" || rows[0].Item.Product != "Urea 45kg" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[0].Item.Qty != 10 || rows[0].Item.MRP != 320 {
		t.Fatalf("numeric fields lost: %+v", rows[0].Item)
	}
	if !rows[0].Date.Equal(date) {
		t.Fatalf("date round trip: got %s", rows[0].Date)
	}
	if rows[1].Item.Expiry != "01-06-2026" {
		t.Fatalf("expiry lost: %+v", rows[1].Item)
	}
}

func TestRemoveInvoiceDeletesOnlyItsRows(t *testing.T) {
	sink := testSink(t)
	date := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)

	if err := sink.AppendInvoice(sampleInvoice("INV-1", date)); err != nil {
		t.Fatalf("AppendInvoice: %v", err)
	}
	other := sampleInvoice("INV-2", date)
	if err := sink.AppendInvoice(other); err != nil {
		t.Fatalf("AppendInvoice: %v", err)
	}

	if err := sink.RemoveInvoice(date, "INV-1"); err != nil {
		t.Fatalf("RemoveInvoice: %v", err)
	}

	rows, err := sink.ReadPurchaseRows("2025-2026")
	if err != nil {
		t.Fatalf("ReadPurchaseRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 remaining rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.InvoiceNo != "INV-2" {
			t.Fatalf("row from deleted invoice survived: %+v", row)
		}
	}

	vendorRows := sheetRows(t, finyear.PurchasePathForLabel(sink.Dir(), "2025-2026"), "VendorWise")
	if len(vendorRows) != 3 {
		t.Fatalf("expected header plus 2 VendorWise rows, got %d", len(vendorRows))
	}
	for _, row := range vendorRows[1:] {
		if row[1] != "INV-2" {
			t.Fatalf("VendorWise row from deleted invoice survived: %v", row)
		}
	}
}

func TestAppendInvoiceWritesVendorWiseRows(t *testing.T) {
	sink := testSink(t)
	date := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)

	if err := sink.AppendInvoice(sampleInvoice("INV-1", date)); err != nil {
		t.Fatalf("AppendInvoice: %v", err)
	}

	rows := sheetRows(t, finyear.PurchasePathForLabel(sink.Dir(), "2025-2026"), "VendorWise")
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	header := rows[0]
	if header[0] != "Vendor" || header[1] != "Invoice No" || header[3] != "Product" {
		t.Fatalf("unexpected VendorWise header: %v", header)
	}
	first := rows[1]
	if first[0] != "AgriVet Traders" || first[1] != "INV-1" || first[3] != "Urea 45kg" {
		t.Fatalf("unexpected VendorWise row: %v", first)
	}
	if first[4] != "10" || first[6] != "320" {
		t.Fatalf("qty or MRP lost on VendorWise: %v", first)
	}
}

func TestRemoveInvoiceMissingWorkbookIsNoop(t *testing.T) {
	sink := testSink(t)
	if err := sink.RemoveInvoice(time.Now(), "INV-9"); err != nil {
		t.Fatalf("expected nil for missing workbook, got %v", err)
	}
}

func sampleBill(number int64, at time.Time) domain.Bill {
	return domain.Bill{
		BillNumber: number,
		DateTime:   at,
		Customer:   domain.Customer{Mobile: "9876543210", Name: "Ramesh", Village: "Kothur"},
		Items: []domain.BillItem{
			{Product: "Urea 45kg", Qty: 2, Price: 320},
		},
		Subtotal: 640,
		GSTTotal: 115.2,
		Total:    640,
		Payment:  domain.Payment{Mode: domain.PaymentModeCash, CashAmt: 640},
		EntryBy:  "staff",
	}
}

func TestAppendBillAndMaxBillNumber(t *testing.T) {
	sink := testSink(t)
	at := time.Date(2025, time.July, 10, 14, 30, 0, 0, time.UTC)
	categories := map[string]domain.Category{"urea 45kg": domain.CategoryFertilizer}

	for _, n := range []int64{1, 3, 2} {
		if err := sink.AppendBill(sampleBill(n, at), categories); err != nil {
			t.Fatalf("AppendBill(%d): %v", n, err)
		}
	}

	max, err := sink.MaxBillNumber()
	if err != nil {
		t.Fatalf("MaxBillNumber: %v", err)
	}
	if max != 3 {
		t.Fatalf("expected max 3, got %d", max)
	}
}

func TestMaxBillNumberEmptyDir(t *testing.T) {
	sink := testSink(t)
	max, err := sink.MaxBillNumber()
	if err != nil {
		t.Fatalf("MaxBillNumber: %v", err)
	}
	if max != 0 {
		t.Fatalf("expected 0, got %d", max)
	}
}

func TestAppendBillMirrorsRowsOnDerivedSheets(t *testing.T) {
	sink := testSink(t)
	at := time.Date(2025, time.July, 10, 14, 30, 0, 0, time.UTC)
	categories := map[string]domain.Category{"urea 45kg": domain.CategoryFertilizer}

	if err := sink.AppendBill(sampleBill(7, at), categories); err != nil {
		t.Fatalf("AppendBill: %v", err)
	}

	path := finyear.SalesFYPath(sink.Dir(), at)

	customers := sheetRows(t, path, "CustomerWise")
	if len(customers) != 2 {
		t.Fatalf("expected header plus 1 CustomerWise row, got %d", len(customers))
	}
	if customers[1][0] != "Ramesh" || customers[1][1] != "9876543210" {
		t.Fatalf("unexpected CustomerWise row: %v", customers[1])
	}

	products := sheetRows(t, path, "ProductWise")
	if len(products) != 2 {
		t.Fatalf("expected header plus 1 ProductWise row, got %d", len(products))
	}
	if products[1][0] != "Urea 45kg" || products[1][3] != "7" {
		t.Fatalf("unexpected ProductWise row: %v", products[1])
	}

	byCategory := sheetRows(t, path, "CategoryWise")
	if len(byCategory) != 2 {
		t.Fatalf("expected header plus 1 CategoryWise row, got %d", len(byCategory))
	}
	if byCategory[1][7] != string(domain.CategoryFertilizer) {
		t.Fatalf("unexpected CategoryWise row: %v", byCategory[1])
	}
}

func TestAppendBillSkipsCategoryWiseWithoutBucket(t *testing.T) {
	sink := testSink(t)
	at := time.Date(2025, time.July, 10, 14, 30, 0, 0, time.UTC)

	if err := sink.AppendBill(sampleBill(8, at), nil); err != nil {
		t.Fatalf("AppendBill: %v", err)
	}

	rows := sheetRows(t, finyear.SalesFYPath(sink.Dir(), at), "CategoryWise")
	if len(rows) != 1 {
		t.Fatalf("uncategorized line leaked onto CategoryWise: %v", rows)
	}
}

func TestProductDetailsRoundTrip(t *testing.T) {
	items := []domain.BillItem{
		{Product: "Urea 45kg", Qty: 2, Price: 320},
		{Product: "Paddy Seed", Qty: 1.5, Price: 90.5},
	}
	encoded := EncodeProductDetails(items)
	if encoded != "Urea 45kg|2|320.00; Paddy Seed|1.5|90.50" {
		t.Fatalf("unexpected encoding: %q", encoded)
	}

	decoded := DecodeProductDetails(encoded)
	if len(decoded) != 2 {
		t.Fatalf("expected 2 items, got %d", len(decoded))
	}
	if decoded[0].Product != "Urea 45kg" || decoded[0].Qty != 2 || decoded[0].Price != 320 {
		t.Fatalf("first item mismatch: %+v", decoded[0])
	}
}

func TestDecodeProductDetailsSkipsMalformed(t *testing.T) {
	decoded := DecodeProductDetails("Urea|2|320.00; broken segment; |1|5; Seed|x|9")
	if len(decoded) != 1 {
		t.Fatalf("expected 1 valid item, got %d", len(decoded))
	}
	if decoded[0].Product != "Urea" {
		t.Fatalf("unexpected item: %+v", decoded[0])
	}
}

func TestUpsertCustomerRowRewritesInPlace(t *testing.T) {
	sink := testSink(t)
	customer := domain.Customer{
		Mobile: "9876543210", Name: "Ramesh", Village: "Kothur",
		EntryBy: "staff", CreatedAt: time.Now(),
	}
	if err := sink.UpsertCustomerRow(customer); err != nil {
		t.Fatalf("UpsertCustomerRow: %v", err)
	}

	customer.Village = "Shadnagar"
	if err := sink.UpsertCustomerRow(customer); err != nil {
		t.Fatalf("UpsertCustomerRow second: %v", err)
	}

	// A second customer lands on its own row.
	other := customer
	other.Mobile = "9000000000"
	other.Name = "Lakshmi"
	if err := sink.UpsertCustomerRow(other); err != nil {
		t.Fatalf("UpsertCustomerRow other: %v", err)
	}
}

func TestPurchaseHistoryPruning(t *testing.T) {
	sink := testSink(t)

	old := sampleBill(1, time.Now().Add(-4*365*24*time.Hour))
	if err := sink.AppendPurchaseHistory(old); err != nil {
		t.Fatalf("AppendPurchaseHistory old: %v", err)
	}
	recent := sampleBill(2, time.Now())
	if err := sink.AppendPurchaseHistory(recent); err != nil {
		t.Fatalf("AppendPurchaseHistory recent: %v", err)
	}

	history, err := sink.ReadPurchaseHistory("9876543210")
	if err != nil {
		t.Fatalf("ReadPurchaseHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected pruned history of 1, got %d", len(history))
	}
	if history[0].BillNumber != 2 {
		t.Fatalf("wrong surviving row: %+v", history[0])
	}
}

func TestOpeningKeyNormalizesProduct(t *testing.T) {
	a := OpeningKey(domain.PurchaseItem{Product: " Urea 45kg ", Unit: "bag", MRP: 320, GSTRate: "5"})
	b := OpeningKey(domain.PurchaseItem{Product: "urea 45kg", Unit: "bag", MRP: 320, GSTRate: "5"})
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
}
