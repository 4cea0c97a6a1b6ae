package audit

import (
	"path/filepath"
	"strconv"
	"time"

	"kisanpos/backend/internal/domain"
)

const (
	customerWorkbook = "customer_data.xlsx"
	loyaltyWorkbook  = "loyalty_points.xlsx"

	// Purchase history older than this is pruned on each append.
	historyRetention = 3 * 365 * 24 * time.Hour
)

var (
	customersHeaders = []string{"Mobile", "Name", "Village", "Aadhar", "Entry By", "Created At"}
	historyHeaders   = []string{"Mobile", "Customer Name", "Bill Number", "Date", "Total", "Product Details"}
	loyaltyHeaders   = []string{"Mobile", "Points", "Updated At", "Reason"}
)

// UpsertCustomerRow writes the customer into the Customers sheet, keyed
// by mobile: an existing row is rewritten in place, otherwise a new row
// is appended.
func (s *Sink) UpsertCustomerRow(customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, customerWorkbook)
	f, err := openOrCreate(path, []string{"Customers", "PurchaseHistory"}, map[string][]string{
		"Customers":       customersHeaders,
		"PurchaseHistory": historyHeaders,
	})
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows("Customers")
	if err != nil {
		return err
	}
	target := len(rows) + 1
	for i, cells := range rows {
		if i > 0 && cell(cells, 0) == customer.Mobile {
			target = i + 1
			break
		}
	}

	err = setRow(f, "Customers", target, []any{
		customer.Mobile,
		customer.Name,
		customer.Village,
		customer.Aadhar,
		customer.EntryBy,
		customer.CreatedAt.Format(domain.DateTimeLayout),
	})
	if err != nil {
		return err
	}
	return f.SaveAs(path)
}

// AppendPurchaseHistory records a bill against the customer's purchase
// history and prunes rows older than the retention window.
func (s *Sink) AppendPurchaseHistory(bill domain.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, customerWorkbook)
	f, err := openOrCreate(path, []string{"Customers", "PurchaseHistory"}, map[string][]string{
		"Customers":       customersHeaders,
		"PurchaseHistory": historyHeaders,
	})
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows("PurchaseHistory")
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-historyRetention)
	for i := len(rows) - 1; i >= 1; i-- {
		at, err := time.Parse(domain.DateTimeLayout, cell(rows[i], 3))
		if err != nil {
			continue
		}
		if at.Before(cutoff) {
			if err := f.RemoveRow("PurchaseHistory", i+1); err != nil {
				return err
			}
		}
	}

	rows, err = f.GetRows("PurchaseHistory")
	if err != nil {
		return err
	}
	err = setRow(f, "PurchaseHistory", len(rows)+1, []any{
		bill.Customer.Mobile,
		bill.Customer.Name,
		bill.BillNumber,
		bill.DateTime.Format(domain.DateTimeLayout),
		bill.Total,
		EncodeProductDetails(bill.Items),
	})
	if err != nil {
		return err
	}
	return f.SaveAs(path)
}

// ReadPurchaseHistory returns the (billNumber, total) pairs stored for a
// mobile number, oldest first.
func (s *Sink) ReadPurchaseHistory(mobile string) ([]domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, customerWorkbook)
	f, err := openOrCreate(path, []string{"Customers", "PurchaseHistory"}, map[string][]string{
		"Customers":       customersHeaders,
		"PurchaseHistory": historyHeaders,
	})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows("PurchaseHistory")
	if err != nil {
		return nil, err
	}

	bills := make([]domain.Bill, 0, len(rows))
	for i, cells := range rows {
		if i == 0 || cell(cells, 0) != mobile {
			continue
		}
		var bill domain.Bill
		bill.Customer.Mobile = mobile
		bill.Customer.Name = cell(cells, 1)
		bill.BillNumber, _ = strconv.ParseInt(cell(cells, 2), 10, 64)
		bill.DateTime, _ = time.Parse(domain.DateTimeLayout, cell(cells, 3))
		bill.Total, _ = strconv.ParseFloat(cell(cells, 4), 64)
		bill.Items = DecodeProductDetails(cell(cells, 5))
		bills = append(bills, bill)
	}
	return bills, nil
}

// UpsertLoyaltyRow mirrors a loyalty balance into the loyalty workbook.
func (s *Sink) UpsertLoyaltyRow(account domain.LoyaltyAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, loyaltyWorkbook)
	f, err := openOrCreate(path, []string{"Points"}, map[string][]string{
		"Points": loyaltyHeaders,
	})
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows("Points")
	if err != nil {
		return err
	}
	target := len(rows) + 1
	for i, cells := range rows {
		if i > 0 && cell(cells, 0) == account.Mobile {
			target = i + 1
			break
		}
	}

	err = setRow(f, "Points", target, []any{
		account.Mobile,
		account.Points,
		account.UpdatedAt.Format(domain.DateTimeLayout),
		account.Reason,
	})
	if err != nil {
		return err
	}
	return f.SaveAs(path)
}
