package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/store"
)

const dateColumnLayout = "2006-01-02"

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// The driver serializes access per connection; a single connection
	// avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS purchases (
			invoice_no   TEXT PRIMARY KEY,
			invoice_date TEXT NOT NULL,
			vendor       TEXT NOT NULL,
			entry_by     TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS purchase_items (
			invoice_no TEXT NOT NULL,
			line_no    INTEGER NOT NULL,
			product    TEXT NOT NULL,
			qty        REAL NOT NULL,
			unit       TEXT NOT NULL,
			mrp        REAL NOT NULL,
			gst_rate   TEXT NOT NULL,
			expiry     TEXT NOT NULL DEFAULT '',
			category   TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (invoice_no, line_no)
		);
		CREATE INDEX IF NOT EXISTS idx_purchases_date ON purchases (invoice_date);
		CREATE TABLE IF NOT EXISTS bills (
			bill_number   INTEGER PRIMARY KEY,
			bill_datetime TEXT NOT NULL,
			mobile        TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			village       TEXT NOT NULL DEFAULT '',
			aadhar        TEXT NOT NULL DEFAULT '',
			subtotal      REAL NOT NULL,
			discount      REAL NOT NULL,
			gst_total     REAL NOT NULL,
			total         REAL NOT NULL,
			payment_mode  TEXT NOT NULL,
			cash_amount   REAL NOT NULL,
			upi_amount    REAL NOT NULL,
			entry_by      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS bill_items (
			bill_number INTEGER NOT NULL,
			line_no     INTEGER NOT NULL,
			product     TEXT NOT NULL,
			qty         REAL NOT NULL,
			price       REAL NOT NULL,
			PRIMARY KEY (bill_number, line_no)
		);
		CREATE INDEX IF NOT EXISTS idx_bills_datetime ON bills (bill_datetime);
		CREATE INDEX IF NOT EXISTS idx_bills_mobile ON bills (mobile);
		CREATE TABLE IF NOT EXISTS customers (
			mobile     TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			village    TEXT NOT NULL DEFAULT '',
			aadhar     TEXT NOT NULL DEFAULT '',
			entry_by   TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS stock (
			product_key TEXT PRIMARY KEY,
			product     TEXT NOT NULL,
			qty         REAL NOT NULL,
			unit        TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS loyalty_points (
			mobile     TEXT PRIMARY KEY,
			points     INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS users (
			username   TEXT PRIMARY KEY,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL,
			active     INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);
	`)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) CreatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice) error {
	if invoice.InvoiceNo == "" || len(invoice.Items) == 0 {
		return store.ErrInvalidRecord
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (invoice_no, invoice_date, vendor, entry_by)
		VALUES (?,?,?,?)
	`, invoice.InvoiceNo, invoice.Date.Format(dateColumnLayout), invoice.Vendor, invoice.EntryBy)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidRecord
		}
		return err
	}

	for i, item := range invoice.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO purchase_items (invoice_no, line_no, product, qty, unit, mrp, gst_rate, expiry, category)
			VALUES (?,?,?,?,?,?,?,?,?)
		`, invoice.InvoiceNo, i+1, item.Product, item.Qty, item.Unit, item.MRP, item.GSTRate, item.Expiry, string(item.Category))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) GetPurchaseInvoice(ctx context.Context, invoiceNo string) (*domain.PurchaseInvoice, error) {
	var invoice domain.PurchaseInvoice
	var rawDate string
	err := s.db.QueryRowContext(ctx, `
		SELECT invoice_no, invoice_date, vendor, entry_by
		FROM purchases
		WHERE invoice_no = ?
	`, invoiceNo).Scan(&invoice.InvoiceNo, &rawDate, &invoice.Vendor, &invoice.EntryBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	invoice.Date, err = time.Parse(dateColumnLayout, rawDate)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product, qty, unit, mrp, gst_rate, expiry, category
		FROM purchase_items
		WHERE invoice_no = ?
		ORDER BY line_no
	`, invoiceNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.PurchaseItem
		var category string
		if err := rows.Scan(&item.Product, &item.Qty, &item.Unit, &item.MRP, &item.GSTRate, &item.Expiry, &category); err != nil {
			return nil, err
		}
		item.Category = domain.Category(category)
		invoice.Items = append(invoice.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &invoice, nil
}

func (s *Store) DeletePurchaseInvoice(ctx context.Context, invoiceNo string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_items WHERE invoice_no = ?`, invoiceNo); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE invoice_no = ?`, invoiceNo)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

func (s *Store) ListPurchaseInvoices(ctx context.Context, from time.Time, to time.Time, vendor string) ([]domain.PurchaseInvoice, error) {
	query := `
		SELECT invoice_no, invoice_date, vendor, entry_by
		FROM purchases
		WHERE invoice_date >= ? AND invoice_date <= ?
	`
	args := []any{from.Format(dateColumnLayout), to.Format(dateColumnLayout)}
	if vendor != "" {
		query += ` AND vendor = ?`
		args = append(args, vendor)
	}
	query += ` ORDER BY invoice_date, invoice_no`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.PurchaseInvoice, 0, 32)
	index := make(map[string]int)
	for rows.Next() {
		var invoice domain.PurchaseInvoice
		var rawDate string
		if err := rows.Scan(&invoice.InvoiceNo, &rawDate, &invoice.Vendor, &invoice.EntryBy); err != nil {
			return nil, err
		}
		if invoice.Date, err = time.Parse(dateColumnLayout, rawDate); err != nil {
			return nil, err
		}
		index[invoice.InvoiceNo] = len(invoices)
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return invoices, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT i.invoice_no, i.product, i.qty, i.unit, i.mrp, i.gst_rate, i.expiry, i.category
		FROM purchase_items i
		JOIN purchases p ON p.invoice_no = i.invoice_no
		WHERE p.invoice_date >= ? AND p.invoice_date <= ?
		ORDER BY i.invoice_no, i.line_no
	`, from.Format(dateColumnLayout), to.Format(dateColumnLayout))
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var invoiceNo, category string
		var item domain.PurchaseItem
		if err := itemRows.Scan(&invoiceNo, &item.Product, &item.Qty, &item.Unit, &item.MRP, &item.GSTRate, &item.Expiry, &category); err != nil {
			return nil, err
		}
		item.Category = domain.Category(category)
		if pos, ok := index[invoiceNo]; ok {
			invoices[pos].Items = append(invoices[pos].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	return invoices, nil
}

func (s *Store) ListPurchaseItems(ctx context.Context, from time.Time, to time.Time) ([]domain.PurchaseItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.product, i.qty, i.unit, i.mrp, i.gst_rate, i.expiry, i.category
		FROM purchase_items i
		JOIN purchases p ON p.invoice_no = i.invoice_no
		WHERE p.invoice_date >= ? AND p.invoice_date <= ?
		ORDER BY p.invoice_date, i.invoice_no, i.line_no
	`, from.Format(dateColumnLayout), to.Format(dateColumnLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.PurchaseItem, 0, 64)
	for rows.Next() {
		var item domain.PurchaseItem
		var category string
		if err := rows.Scan(&item.Product, &item.Qty, &item.Unit, &item.MRP, &item.GSTRate, &item.Expiry, &category); err != nil {
			return nil, err
		}
		item.Category = domain.Category(category)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetStock(ctx context.Context, product string) (float64, error) {
	var qty float64
	err := s.db.QueryRowContext(ctx, `
		SELECT qty FROM stock WHERE product_key = ?
	`, domain.NormalizeProductKey(product)).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return qty, nil
}

func (s *Store) GetStockMap(ctx context.Context) (map[string]domain.StockLevel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT product_key, product, qty FROM stock`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.StockLevel, 128)
	for rows.Next() {
		var key string
		var level domain.StockLevel
		if err := rows.Scan(&key, &level.Product, &level.Available); err != nil {
			return nil, err
		}
		result[key] = level
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) AddStock(ctx context.Context, product string, qty float64, unit string) error {
	if qty <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock (product_key, product, qty, unit)
		VALUES (?,?,?,?)
		ON CONFLICT(product_key) DO UPDATE SET
			qty = qty + excluded.qty,
			unit = CASE WHEN excluded.unit != '' THEN excluded.unit ELSE unit END
	`, domain.NormalizeProductKey(product), strings.TrimSpace(product), qty, unit)
	return err
}

// SubtractStock never drives a ledger row negative; removing more than is
// on hand leaves the row at zero. A missing row is a no-op.
func (s *Store) SubtractStock(ctx context.Context, product string, qty float64) error {
	if qty <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE stock SET qty = MAX(qty - ?, 0) WHERE product_key = ?
	`, qty, domain.NormalizeProductKey(product))
	return err
}

func (s *Store) SetStock(ctx context.Context, product string, qty float64, unit string) error {
	if qty < 0 {
		qty = 0
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock (product_key, product, qty, unit)
		VALUES (?,?,?,?)
		ON CONFLICT(product_key) DO UPDATE SET
			qty = excluded.qty,
			product = excluded.product,
			unit = CASE WHEN excluded.unit != '' THEN excluded.unit ELSE unit END
	`, domain.NormalizeProductKey(product), strings.TrimSpace(product), qty, unit)
	return err
}

func (s *Store) CreateBill(ctx context.Context, bill domain.Bill) error {
	if bill.BillNumber < 1 || len(bill.Items) == 0 {
		return store.ErrInvalidRecord
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bills (bill_number, bill_datetime, mobile, customer_name, village, aadhar,
			subtotal, discount, gst_total, total, payment_mode, cash_amount, upi_amount, entry_by)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, bill.BillNumber, bill.DateTime.Format(domain.DateTimeLayout), bill.Customer.Mobile,
		bill.Customer.Name, bill.Customer.Village, bill.Customer.Aadhar,
		bill.Subtotal, bill.Discount, bill.GSTTotal, bill.Total,
		bill.Payment.Mode, bill.Payment.CashAmt, bill.Payment.UPIAmt, bill.EntryBy)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidRecord
		}
		return err
	}

	if err := insertBillItems(ctx, tx, bill.BillNumber, bill.Items); err != nil {
		return err
	}
	return tx.Commit()
}

func insertBillItems(ctx context.Context, tx *sql.Tx, billNumber int64, items []domain.BillItem) error {
	for i, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bill_items (bill_number, line_no, product, qty, price)
			VALUES (?,?,?,?,?)
		`, billNumber, i+1, item.Product, item.Qty, item.Price)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetBill(ctx context.Context, billNumber int64) (*domain.Bill, error) {
	var bill domain.Bill
	var rawDateTime string
	err := s.db.QueryRowContext(ctx, `
		SELECT bill_number, bill_datetime, mobile, customer_name, village, aadhar,
			subtotal, discount, gst_total, total, payment_mode, cash_amount, upi_amount, entry_by
		FROM bills
		WHERE bill_number = ?
	`, billNumber).Scan(&bill.BillNumber, &rawDateTime, &bill.Customer.Mobile,
		&bill.Customer.Name, &bill.Customer.Village, &bill.Customer.Aadhar,
		&bill.Subtotal, &bill.Discount, &bill.GSTTotal, &bill.Total,
		&bill.Payment.Mode, &bill.Payment.CashAmt, &bill.Payment.UPIAmt, &bill.EntryBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if bill.DateTime, err = time.Parse(domain.DateTimeLayout, rawDateTime); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product, qty, price FROM bill_items WHERE bill_number = ? ORDER BY line_no
	`, billNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.BillItem
		if err := rows.Scan(&item.Product, &item.Qty, &item.Price); err != nil {
			return nil, err
		}
		bill.Items = append(bill.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &bill, nil
}

func (s *Store) UpdateBill(ctx context.Context, bill domain.Bill) error {
	if bill.BillNumber < 1 || len(bill.Items) == 0 {
		return store.ErrInvalidRecord
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE bills
		SET bill_datetime = ?, mobile = ?, customer_name = ?, village = ?, aadhar = ?,
			subtotal = ?, discount = ?, gst_total = ?, total = ?,
			payment_mode = ?, cash_amount = ?, upi_amount = ?, entry_by = ?
		WHERE bill_number = ?
	`, bill.DateTime.Format(domain.DateTimeLayout), bill.Customer.Mobile,
		bill.Customer.Name, bill.Customer.Village, bill.Customer.Aadhar,
		bill.Subtotal, bill.Discount, bill.GSTTotal, bill.Total,
		bill.Payment.Mode, bill.Payment.CashAmt, bill.Payment.UPIAmt, bill.EntryBy,
		bill.BillNumber)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bill_items WHERE bill_number = ?`, bill.BillNumber); err != nil {
		return err
	}
	if err := insertBillItems(ctx, tx, bill.BillNumber, bill.Items); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteBill(ctx context.Context, billNumber int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bill_items WHERE bill_number = ?`, billNumber); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM bills WHERE bill_number = ?`, billNumber)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) ListBills(ctx context.Context, from time.Time, to time.Time, mobile string) ([]domain.Bill, error) {
	query := `
		SELECT bill_number, bill_datetime, mobile, customer_name, village, aadhar,
			subtotal, discount, gst_total, total, payment_mode, cash_amount, upi_amount, entry_by
		FROM bills
		WHERE bill_datetime >= ? AND bill_datetime <= ?
	`
	args := []any{from.Format(domain.DateTimeLayout), to.Format(domain.DateTimeLayout)}
	if mobile != "" {
		query += ` AND mobile = ?`
		args = append(args, mobile)
	}
	query += ` ORDER BY bill_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 64)
	index := make(map[int64]int)
	for rows.Next() {
		var bill domain.Bill
		var rawDateTime string
		if err := rows.Scan(&bill.BillNumber, &rawDateTime, &bill.Customer.Mobile,
			&bill.Customer.Name, &bill.Customer.Village, &bill.Customer.Aadhar,
			&bill.Subtotal, &bill.Discount, &bill.GSTTotal, &bill.Total,
			&bill.Payment.Mode, &bill.Payment.CashAmt, &bill.Payment.UPIAmt, &bill.EntryBy); err != nil {
			return nil, err
		}
		if bill.DateTime, err = time.Parse(domain.DateTimeLayout, rawDateTime); err != nil {
			return nil, err
		}
		index[bill.BillNumber] = len(bills)
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return bills, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT i.bill_number, i.product, i.qty, i.price
		FROM bill_items i
		JOIN bills b ON b.bill_number = i.bill_number
		WHERE b.bill_datetime >= ? AND b.bill_datetime <= ?
		ORDER BY i.bill_number, i.line_no
	`, from.Format(domain.DateTimeLayout), to.Format(domain.DateTimeLayout))
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var billNumber int64
		var item domain.BillItem
		if err := itemRows.Scan(&billNumber, &item.Product, &item.Qty, &item.Price); err != nil {
			return nil, err
		}
		if pos, ok := index[billNumber]; ok {
			bills[pos].Items = append(bills[pos].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	return bills, nil
}

func (s *Store) MaxBillNumber(ctx context.Context) (int64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(bill_number), 0) FROM bills`).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max, nil
}

// UpsertCustomer merges the incoming record into the stored one: non-empty
// incoming fields win, blanks keep the stored value. entry_by and
// created_at always take the incoming values so the row reflects who
// touched it last.
func (s *Store) UpsertCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Mobile == "" {
		return nil, store.ErrInvalidRecord
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (mobile, name, village, aadhar, entry_by, created_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(mobile) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE name END,
			village = CASE WHEN excluded.village != '' THEN excluded.village ELSE village END,
			aadhar = CASE WHEN excluded.aadhar != '' THEN excluded.aadhar ELSE aadhar END,
			entry_by = excluded.entry_by,
			created_at = excluded.created_at
	`, customer.Mobile, customer.Name, customer.Village, customer.Aadhar,
		customer.EntryBy, customer.CreatedAt.Format(domain.DateTimeLayout))
	if err != nil {
		return nil, err
	}

	return s.GetCustomer(ctx, customer.Mobile)
}

func (s *Store) GetCustomer(ctx context.Context, mobile string) (*domain.Customer, error) {
	var customer domain.Customer
	var rawCreatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT mobile, name, village, aadhar, entry_by, created_at
		FROM customers
		WHERE mobile = ?
	`, mobile).Scan(&customer.Mobile, &customer.Name, &customer.Village,
		&customer.Aadhar, &customer.EntryBy, &rawCreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customer.CreatedAt, err = time.Parse(domain.DateTimeLayout, rawCreatedAt); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mobile, name, village, aadhar, entry_by, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var customer domain.Customer
		var rawCreatedAt string
		if err := rows.Scan(&customer.Mobile, &customer.Name, &customer.Village,
			&customer.Aadhar, &customer.EntryBy, &rawCreatedAt); err != nil {
			return nil, err
		}
		if customer.CreatedAt, err = time.Parse(domain.DateTimeLayout, rawCreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetLoyalty(ctx context.Context, mobile string) (*domain.LoyaltyAccount, error) {
	var account domain.LoyaltyAccount
	var rawUpdatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT mobile, points, updated_at, reason FROM loyalty_points WHERE mobile = ?
	`, mobile).Scan(&account.Mobile, &account.Points, &rawUpdatedAt, &account.Reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if account.UpdatedAt, err = time.Parse(domain.DateTimeLayout, rawUpdatedAt); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) AdjustLoyalty(ctx context.Context, mobile string, delta int64, at time.Time) (*domain.LoyaltyAccount, error) {
	if mobile == "" {
		return nil, store.ErrInvalidRecord
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var points int64
	err = tx.QueryRowContext(ctx, `SELECT points FROM loyalty_points WHERE mobile = ?`, mobile).Scan(&points)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if points+delta < 0 {
		return nil, store.ErrInvalidRecord
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loyalty_points (mobile, points, updated_at, reason)
		VALUES (?,?,?,'')
		ON CONFLICT(mobile) DO UPDATE SET
			points = points + excluded.points,
			updated_at = excluded.updated_at
	`, mobile, delta, at.Format(domain.DateTimeLayout))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetLoyalty(ctx, mobile)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	var rawCreatedAt string
	var active int
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at FROM users WHERE username = ?
	`, username).Scan(&user.Username, &user.Password, &user.Role, &active, &rawCreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.Active = active == 1
	if user.CreatedAt, err = time.Parse(domain.DateTimeLayout, rawCreatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRecord
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	active := 0
	if user.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES (?,?,?,?,?)
	`, user.Username, user.Password, user.Role, active, user.CreatedAt.Format(domain.DateTimeLayout))
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidRecord
	}
	return err
}
