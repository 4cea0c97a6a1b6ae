package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/store"
)

const gstRate = 0.18

// loyaltyEarnDivisor: one point per whole hundred rupees of bill total.
const loyaltyEarnDivisor = 100

// seedBillSequence reads the high-water mark from both backends once.
// A failed attempt leaves the sequence unseeded so the next call tries
// again instead of pinning the error for the rest of the process.
func (s *Service) seedBillSequence(ctx context.Context) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if s.seqSeeded {
		return nil
	}

	dbMax, err := s.repo.MaxBillNumber(ctx)
	if err != nil {
		return err
	}
	auditMax := int64(0)
	if s.sink != nil {
		auditMax, err = s.sink.MaxBillNumber()
		if err != nil {
			return err
		}
	}

	s.billSeq.Seed(dbMax)
	s.billSeq.Seed(auditMax)
	s.seqSeeded = true
	return nil
}

func aggregateBillQty(items []domain.BillItem) map[string]float64 {
	qty := make(map[string]float64, len(items))
	for _, item := range items {
		qty[domain.NormalizeProductKey(item.Product)] += item.Qty
	}
	return qty
}

// billDisplayNames maps normalized keys back to the entered product
// names, so stock returns never write a lowercased key into the ledger.
func billDisplayNames(itemSets ...[]domain.BillItem) map[string]string {
	names := make(map[string]string)
	for _, items := range itemSets {
		for _, item := range items {
			names[domain.NormalizeProductKey(item.Product)] = item.Product
		}
	}
	return names
}

func billSubtotal(items []domain.BillItem) float64 {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.Qty).Mul(decimal.NewFromFloat(item.Price)))
	}
	return sum.Round(2).InexactFloat64()
}

func (s *Service) normalizeBillInput(items []domain.BillItem, discount float64, mode string, cash, upi float64) ([]domain.BillItem, domain.Payment, float64, float64, float64, error) {
	normalized := make([]domain.BillItem, 0, len(items))
	for _, item := range items {
		item.Product = strings.TrimSpace(item.Product)
		if item.Product == "" || item.Qty <= 0 || item.Price <= 0 {
			return nil, domain.Payment{}, 0, 0, 0, store.ErrInvalidRecord
		}
		if strings.ContainsAny(item.Product, "|;") {
			return nil, domain.Payment{}, 0, 0, 0, store.ErrInvalidRecord
		}
		normalized = append(normalized, item)
	}
	if !domain.IsSupportedPaymentMode(mode) {
		return nil, domain.Payment{}, 0, 0, 0, store.ErrInvalidRecord
	}

	subtotal := billSubtotal(normalized)
	if discount < 0 {
		return nil, domain.Payment{}, 0, 0, 0, store.ErrInvalidRecord
	}
	// A discount beyond the subtotal clamps the payable to zero.
	total := round2(math.Max(0, subtotal-discount))
	gstTotal := round2(subtotal * gstRate)

	payment := domain.Payment{Mode: mode}
	switch mode {
	case domain.PaymentModeCash:
		payment.CashAmt = total
	case domain.PaymentModeUPI:
		payment.UPIAmt = total
	case domain.PaymentModeBoth:
		payment.CashAmt = round2(cash)
		payment.UPIAmt = round2(upi)
		if !paymentBalances(payment.CashAmt, payment.UPIAmt, total) {
			return nil, domain.Payment{}, 0, 0, 0, store.ErrInvalidRecord
		}
	}

	return normalized, payment, subtotal, total, gstTotal, nil
}

// SaveBill creates a sales bill: validates stock for every line, assigns
// the next bill number, upserts the customer, moves the ledger, earns
// loyalty points, and mirrors everything into the sales workbooks.
func (s *Service) SaveBill(ctx context.Context, req domain.BillSaveRequest) (*domain.BillSaveResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, store.ErrInvalidRecord
	}
	if err := s.seedBillSequence(ctx); err != nil {
		return nil, err
	}

	items, payment, subtotal, total, gstTotal, err := s.normalizeBillInput(
		req.Items, req.Discount, req.PaymentMode, req.CashAmt, req.UPIAmt)
	if err != nil {
		return nil, err
	}

	mobile := domain.NormalizeMobile(req.Mobile)
	if mobile == "" {
		return nil, store.ErrInvalidRecord
	}

	// Every line must be covered before anything moves.
	for key, qty := range aggregateBillQty(items) {
		available, err := s.repo.GetStock(ctx, key)
		if err != nil {
			return nil, err
		}
		if available < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	customer, err := s.upsertCustomer(ctx, domain.Customer{
		Mobile:  mobile,
		Name:    strings.TrimSpace(req.CustomerName),
		Village: strings.TrimSpace(req.Village),
		Aadhar:  strings.TrimSpace(req.Aadhar),
		EntryBy: entryBy(ctx),
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	bill := domain.Bill{
		BillNumber: s.billSeq.Next(),
		DateTime:   now,
		Customer:   *customer,
		Items:      items,
		Subtotal:   subtotal,
		Discount:   round2(req.Discount),
		GSTTotal:   gstTotal,
		Total:      total,
		Payment:    payment,
		EntryBy:    entryBy(ctx),
	}
	if err := s.repo.CreateBill(ctx, bill); err != nil {
		return nil, err
	}

	for key, qty := range aggregateBillQty(items) {
		if err := s.repo.SubtractStock(ctx, key, qty); err != nil {
			return nil, err
		}
	}

	s.earnLoyalty(ctx, mobile, total)
	s.mirrorBill(ctx, bill)

	return &domain.BillSaveResponse{
		BillNumber: bill.BillNumber,
		Total:      bill.Total,
		GSTTotal:   bill.GSTTotal,
		CreatedAt:  now.Format(domain.DateTimeLayout),
	}, nil
}

func (s *Service) earnLoyalty(ctx context.Context, mobile string, total float64) {
	points := int64(total) / loyaltyEarnDivisor
	if points < 1 {
		return
	}
	account, err := s.repo.AdjustLoyalty(ctx, mobile, points, s.now())
	if err != nil {
		s.log.WithError(err).Warnf("loyalty earn failed: mobile=%s", mobile)
		return
	}
	if s.sink != nil {
		s.warnAudit("loyalty row", s.sink.UpsertLoyaltyRow(*account))
	}
}

func (s *Service) mirrorBill(ctx context.Context, bill domain.Bill) {
	if s.sink == nil {
		return
	}
	categories, err := s.productCategories(ctx)
	if err != nil {
		s.log.WithError(err).Warn("category lookup for audit failed")
		categories = nil
	}
	s.warnAudit("sales append", s.sink.AppendBill(bill, categories))
	s.warnAudit("customer row", s.sink.UpsertCustomerRow(bill.Customer))
	s.warnAudit("purchase history", s.sink.AppendPurchaseHistory(bill))
}

// productCategories maps normalized product names to their taxonomy
// bucket, derived from the last three years of purchase lines.
func (s *Service) productCategories(ctx context.Context) (map[string]domain.Category, error) {
	now := s.now()
	items, err := s.repo.ListPurchaseItems(ctx, now.AddDate(-3, 0, 0), now)
	if err != nil {
		return nil, err
	}
	categories := make(map[string]domain.Category, len(items))
	for _, item := range items {
		if item.Category == domain.CategoryNone {
			continue
		}
		categories[domain.NormalizeProductKey(item.Product)] = item.Category
	}
	return categories, nil
}

// UpdateBill edits an existing bill in place. The bill number and the
// original timestamp are preserved. The stock ledger moves only by the
// per-product difference between the old and new lines, and every
// additional quantity is validated against available stock before any
// row changes. The sales workbooks are not rewritten; the database is
// authoritative for edits.
func (s *Service) UpdateBill(ctx context.Context, req domain.BillUpdateRequest) (*domain.Bill, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, store.ErrInvalidRecord
	}

	existing, err := s.repo.GetBill(ctx, req.BillNumber)
	if err != nil {
		return nil, err
	}

	items, payment, subtotal, total, gstTotal, err := s.normalizeBillInput(
		req.Items, req.Discount, req.PaymentMode, req.CashAmt, req.UPIAmt)
	if err != nil {
		return nil, err
	}

	mobile := domain.NormalizeMobile(req.Mobile)
	if mobile == "" {
		return nil, store.ErrInvalidRecord
	}

	oldQty := aggregateBillQty(existing.Items)
	newQty := aggregateBillQty(items)

	// Validate every increase before mutating anything.
	for key, qty := range newQty {
		delta := qty - oldQty[key]
		if delta <= 0 {
			continue
		}
		available, err := s.repo.GetStock(ctx, key)
		if err != nil {
			return nil, err
		}
		if available < delta {
			return nil, store.ErrInsufficientStock
		}
	}

	customer, err := s.upsertCustomer(ctx, domain.Customer{
		Mobile:  mobile,
		Name:    strings.TrimSpace(req.CustomerName),
		Village: strings.TrimSpace(req.Village),
		Aadhar:  strings.TrimSpace(req.Aadhar),
		EntryBy: entryBy(ctx),
	})
	if err != nil {
		return nil, err
	}

	updated := domain.Bill{
		BillNumber: existing.BillNumber,
		DateTime:   existing.DateTime,
		Customer:   *customer,
		Items:      items,
		Subtotal:   subtotal,
		Discount:   round2(req.Discount),
		GSTTotal:   gstTotal,
		Total:      total,
		Payment:    payment,
		EntryBy:    entryBy(ctx),
	}
	if err := s.repo.UpdateBill(ctx, updated); err != nil {
		return nil, err
	}

	displayNames := billDisplayNames(existing.Items, items)

	// Returns first, then additional sales.
	for key, qty := range oldQty {
		delta := newQty[key] - qty
		if delta < 0 {
			if err := s.repo.AddStock(ctx, displayNames[key], -delta, ""); err != nil {
				return nil, err
			}
		}
	}
	for key, qty := range newQty {
		delta := qty - oldQty[key]
		if delta > 0 {
			if err := s.repo.SubtractStock(ctx, key, delta); err != nil {
				return nil, err
			}
		}
	}

	s.adjustLoyaltyForEdit(ctx, mobile, existing.Total, total)

	return &updated, nil
}

func (s *Service) adjustLoyaltyForEdit(ctx context.Context, mobile string, oldTotal, newTotal float64) {
	delta := int64(newTotal)/loyaltyEarnDivisor - int64(oldTotal)/loyaltyEarnDivisor
	if delta == 0 {
		return
	}
	account, err := s.repo.AdjustLoyalty(ctx, mobile, delta, s.now())
	if err != nil {
		s.log.WithError(err).Warnf("loyalty adjust on edit failed: mobile=%s", mobile)
		return
	}
	if s.sink != nil {
		s.warnAudit("loyalty row", s.sink.UpsertLoyaltyRow(*account))
	}
}

// DeleteBill removes a bill and returns its goods to the ledger.
// Admin only.
func (s *Service) DeleteBill(ctx context.Context, billNumber int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	bill, err := s.repo.GetBill(ctx, billNumber)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteBill(ctx, billNumber); err != nil {
		return err
	}

	displayNames := billDisplayNames(bill.Items)
	for key, qty := range aggregateBillQty(bill.Items) {
		if err := s.repo.AddStock(ctx, displayNames[key], qty, ""); err != nil {
			return err
		}
	}

	// The sales workbooks keep the deleted bill's rows; the audit trail
	// is append-only and the database stays authoritative.
	s.adjustLoyaltyForEdit(ctx, bill.Customer.Mobile, bill.Total, 0)
	return nil
}

func (s *Service) GetBill(ctx context.Context, billNumber int64) (*domain.Bill, error) {
	return s.repo.GetBill(ctx, billNumber)
}

func (s *Service) ListBills(ctx context.Context, from, to time.Time, mobile string) ([]domain.Bill, error) {
	if mobile != "" {
		mobile = domain.NormalizeMobile(mobile)
	}
	return s.repo.ListBills(ctx, from, to, mobile)
}

// NextBillNumber previews the number the next saved bill will get.
func (s *Service) NextBillNumber(ctx context.Context) (int64, error) {
	if err := s.seedBillSequence(ctx); err != nil {
		return 0, err
	}
	return s.billSeq.Last() + 1, nil
}
