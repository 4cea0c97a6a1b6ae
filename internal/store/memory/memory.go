// Package memory is an in-process Repository used by tests and by dev
// mode when no SQLite path is configured.
package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/store"
)

type stockRow struct {
	product string
	qty     float64
	unit    string
}

type Store struct {
	mu              sync.RWMutex
	invoicesByNo    map[string]domain.PurchaseInvoice
	billsByNumber   map[int64]domain.Bill
	customersByMob  map[string]domain.Customer
	stockByKey      map[string]stockRow
	loyaltyByMob    map[string]domain.LoyaltyAccount
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		invoicesByNo:    make(map[string]domain.PurchaseInvoice),
		billsByNumber:   make(map[int64]domain.Bill),
		customersByMob:  make(map[string]domain.Customer),
		stockByKey:      make(map[string]stockRow),
		loyaltyByMob:    make(map[string]domain.LoyaltyAccount),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with dev staff accounts. Credentials come from
// SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD, with hardcoded dev defaults
// and a warning when unset.
func NewSeeded() *Store {
	s := New()
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now()
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		s.usersByUsername[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func cloneInvoice(invoice domain.PurchaseInvoice) domain.PurchaseInvoice {
	out := invoice
	out.Items = append([]domain.PurchaseItem(nil), invoice.Items...)
	return out
}

func cloneBill(bill domain.Bill) domain.Bill {
	out := bill
	out.Items = append([]domain.BillItem(nil), bill.Items...)
	return out
}

func (s *Store) CreatePurchaseInvoice(_ context.Context, invoice domain.PurchaseInvoice) error {
	if invoice.InvoiceNo == "" || len(invoice.Items) == 0 {
		return store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invoicesByNo[invoice.InvoiceNo]; exists {
		return store.ErrInvalidRecord
	}
	s.invoicesByNo[invoice.InvoiceNo] = cloneInvoice(invoice)
	return nil
}

func (s *Store) GetPurchaseInvoice(_ context.Context, invoiceNo string) (*domain.PurchaseInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invoice, ok := s.invoicesByNo[invoiceNo]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneInvoice(invoice)
	return &out, nil
}

func (s *Store) DeletePurchaseInvoice(_ context.Context, invoiceNo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoicesByNo[invoiceNo]; !ok {
		return store.ErrNotFound
	}
	delete(s.invoicesByNo, invoiceNo)
	return nil
}

func (s *Store) ListPurchaseInvoices(_ context.Context, from time.Time, to time.Time, vendor string) ([]domain.PurchaseInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoices := make([]domain.PurchaseInvoice, 0, len(s.invoicesByNo))
	for _, invoice := range s.invoicesByNo {
		if invoice.Date.Before(from) || invoice.Date.After(to) {
			continue
		}
		if vendor != "" && invoice.Vendor != vendor {
			continue
		}
		invoices = append(invoices, cloneInvoice(invoice))
	}
	sort.Slice(invoices, func(i, j int) bool {
		if !invoices[i].Date.Equal(invoices[j].Date) {
			return invoices[i].Date.Before(invoices[j].Date)
		}
		return invoices[i].InvoiceNo < invoices[j].InvoiceNo
	})
	return invoices, nil
}

func (s *Store) ListPurchaseItems(ctx context.Context, from time.Time, to time.Time) ([]domain.PurchaseItem, error) {
	invoices, err := s.ListPurchaseInvoices(ctx, from, to, "")
	if err != nil {
		return nil, err
	}
	items := make([]domain.PurchaseItem, 0, 64)
	for _, invoice := range invoices {
		items = append(items, invoice.Items...)
	}
	return items, nil
}

func (s *Store) GetStock(_ context.Context, product string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stockByKey[domain.NormalizeProductKey(product)].qty, nil
}

func (s *Store) GetStockMap(_ context.Context) (map[string]domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.StockLevel, len(s.stockByKey))
	for key, row := range s.stockByKey {
		result[key] = domain.StockLevel{Product: row.product, Available: row.qty}
	}
	return result, nil
}

func (s *Store) AddStock(_ context.Context, product string, qty float64, unit string) error {
	if qty <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.NormalizeProductKey(product)
	row := s.stockByKey[key]
	if row.product == "" {
		row.product = product
	}
	row.qty += qty
	if unit != "" {
		row.unit = unit
	}
	s.stockByKey[key] = row
	return nil
}

func (s *Store) SubtractStock(_ context.Context, product string, qty float64) error {
	if qty <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.NormalizeProductKey(product)
	row, ok := s.stockByKey[key]
	if !ok {
		return nil
	}
	row.qty -= qty
	if row.qty < 0 {
		row.qty = 0
	}
	s.stockByKey[key] = row
	return nil
}

func (s *Store) SetStock(_ context.Context, product string, qty float64, unit string) error {
	if qty < 0 {
		qty = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.NormalizeProductKey(product)
	row := s.stockByKey[key]
	row.product = product
	row.qty = qty
	if unit != "" {
		row.unit = unit
	}
	s.stockByKey[key] = row
	return nil
}

func (s *Store) CreateBill(_ context.Context, bill domain.Bill) error {
	if bill.BillNumber < 1 || len(bill.Items) == 0 {
		return store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.billsByNumber[bill.BillNumber]; exists {
		return store.ErrInvalidRecord
	}
	s.billsByNumber[bill.BillNumber] = cloneBill(bill)
	return nil
}

func (s *Store) GetBill(_ context.Context, billNumber int64) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bill, ok := s.billsByNumber[billNumber]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneBill(bill)
	return &out, nil
}

func (s *Store) UpdateBill(_ context.Context, bill domain.Bill) error {
	if bill.BillNumber < 1 || len(bill.Items) == 0 {
		return store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.billsByNumber[bill.BillNumber]; !ok {
		return store.ErrNotFound
	}
	s.billsByNumber[bill.BillNumber] = cloneBill(bill)
	return nil
}

func (s *Store) DeleteBill(_ context.Context, billNumber int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.billsByNumber[billNumber]; !ok {
		return store.ErrNotFound
	}
	delete(s.billsByNumber, billNumber)
	return nil
}

func (s *Store) ListBills(_ context.Context, from time.Time, to time.Time, mobile string) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.Bill, 0, len(s.billsByNumber))
	for _, bill := range s.billsByNumber {
		if bill.DateTime.Before(from) || bill.DateTime.After(to) {
			continue
		}
		if mobile != "" && bill.Customer.Mobile != mobile {
			continue
		}
		bills = append(bills, cloneBill(bill))
	}
	sort.Slice(bills, func(i, j int) bool { return bills[i].BillNumber < bills[j].BillNumber })
	return bills, nil
}

func (s *Store) MaxBillNumber(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	for n := range s.billsByNumber {
		if n > max {
			max = n
		}
	}
	return max, nil
}

func (s *Store) UpsertCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Mobile == "" {
		return nil, store.ErrInvalidRecord
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customersByMob[customer.Mobile]
	if ok {
		if customer.Name == "" {
			customer.Name = existing.Name
		}
		if customer.Village == "" {
			customer.Village = existing.Village
		}
		if customer.Aadhar == "" {
			customer.Aadhar = existing.Aadhar
		}
	}
	s.customersByMob[customer.Mobile] = customer
	out := customer
	return &out, nil
}

func (s *Store) GetCustomer(_ context.Context, mobile string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customersByMob[mobile]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := customer
	return &out, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customers := make([]domain.Customer, 0, len(s.customersByMob))
	for _, c := range s.customersByMob {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].Name < customers[j].Name })
	return customers, nil
}

func (s *Store) GetLoyalty(_ context.Context, mobile string) (*domain.LoyaltyAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.loyaltyByMob[mobile]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := account
	return &out, nil
}

func (s *Store) AdjustLoyalty(_ context.Context, mobile string, delta int64, at time.Time) (*domain.LoyaltyAccount, error) {
	if mobile == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.loyaltyByMob[mobile]
	if account.Points+delta < 0 {
		return nil, store.ErrInvalidRecord
	}
	account.Mobile = mobile
	account.Points += delta
	account.UpdatedAt = at
	s.loyaltyByMob[mobile] = account
	out := account
	return &out, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByUsername[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := user
	return &out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRecord
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidRecord
	}
	s.usersByUsername[user.Username] = user
	return nil
}
