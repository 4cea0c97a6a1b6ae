package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/store"
)

const (
	lowStockThreshold = 5
	nearExpiryDays    = 30
	topListSize       = 5
	autocompleteLimit = 10
	purchaseLookback  = 3 // years of purchase lines scanned for expiry and categories
)

// StockLevels returns the live ledger sorted by product name.
func (s *Service) StockLevels(ctx context.Context) ([]domain.StockLevel, error) {
	levels, err := s.repo.GetStockMap(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StockLevel, 0, len(levels))
	for _, level := range levels {
		out = append(out, level)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product < out[j].Product })
	return out, nil
}

// AvailableStock reports the on-hand quantity for one product.
func (s *Service) AvailableStock(ctx context.Context, product string) (float64, error) {
	return s.repo.GetStock(ctx, product)
}

// CorrectStock overwrites one ledger row after a physical count.
// Admin only; the stores clamp negative counts to zero.
func (s *Service) CorrectStock(ctx context.Context, product string, qty float64, unit string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	product = strings.TrimSpace(product)
	if product == "" {
		return store.ErrInvalidRecord
	}
	return s.repo.SetStock(ctx, product, qty, unit)
}

// AutocompleteProducts suggests ledger product names matching a typed
// fragment, for the billing and purchase entry screens.
func (s *Service) AutocompleteProducts(ctx context.Context, fragment string) ([]string, error) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	levels, err := s.repo.GetStockMap(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]string, 0, autocompleteLimit)
	for key, level := range levels {
		if fragment == "" || strings.Contains(key, fragment) {
			matches = append(matches, level.Product)
		}
	}
	sort.Strings(matches)
	if len(matches) > autocompleteLimit {
		matches = matches[:autocompleteLimit]
	}
	return matches, nil
}

// PlannedInDraft sums the quantity of a product across staged, unsaved
// bill lines. Pure helper behind the billing screen's stock indicator.
func PlannedInDraft(items []domain.BillItem, product string) float64 {
	key := domain.NormalizeProductKey(product)
	var planned float64
	for _, item := range items {
		if domain.NormalizeProductKey(item.Product) == key {
			planned += item.Qty
		}
	}
	return planned
}

// StockIndicator reports available and draft-planned quantities for one
// product, for the live indicator shown while composing a bill.
func (s *Service) StockIndicator(ctx context.Context, product string, draft []domain.BillItem) (*domain.StockLevel, error) {
	available, err := s.repo.GetStock(ctx, product)
	if err != nil {
		return nil, err
	}
	return &domain.StockLevel{
		Product:   strings.TrimSpace(product),
		Available: available,
		Planned:   PlannedInDraft(draft, product),
	}, nil
}

// SalesSummary aggregates bills in the range into monthly totals and
// top products and customers.
func (s *Service) SalesSummary(ctx context.Context, from, to time.Time) (*domain.SalesReport, error) {
	bills, err := s.repo.ListBills(ctx, from, to, "")
	if err != nil {
		return nil, err
	}

	report := &domain.SalesReport{
		From:      from.Format(domain.DateLayout),
		To:        to.Format(domain.DateLayout),
		BillCount: len(bills),
	}

	monthly := make(map[string]float64)
	months := make([]string, 0, 12)
	type productAgg struct {
		name   string
		qty    float64
		amount float64
	}
	products := make(map[string]*productAgg)
	type customerAgg struct {
		name  string
		spent float64
		bills int
	}
	customers := make(map[string]*customerAgg)

	for _, bill := range bills {
		report.GrossTotal += bill.Total

		month := bill.DateTime.Format("2006-01")
		if _, ok := monthly[month]; !ok {
			months = append(months, month)
		}
		monthly[month] += bill.Total

		for _, item := range bill.Items {
			key := domain.NormalizeProductKey(item.Product)
			agg, ok := products[key]
			if !ok {
				agg = &productAgg{name: item.Product}
				products[key] = agg
			}
			agg.qty += item.Qty
			agg.amount += item.Qty * item.Price
		}

		cust, ok := customers[bill.Customer.Mobile]
		if !ok {
			cust = &customerAgg{name: bill.Customer.Name}
			customers[bill.Customer.Mobile] = cust
		}
		cust.spent += bill.Total
		cust.bills++
	}
	report.GrossTotal = round2(report.GrossTotal)

	sort.Strings(months)
	for _, month := range months {
		report.Monthly = append(report.Monthly, domain.MonthlySales{
			Month: month,
			Total: round2(monthly[month]),
		})
	}

	for _, agg := range products {
		report.TopProducts = append(report.TopProducts, domain.TopProduct{
			Product:  agg.name,
			QtySold:  agg.qty,
			SalesAmt: round2(agg.amount),
		})
	}
	sort.Slice(report.TopProducts, func(i, j int) bool {
		return report.TopProducts[i].SalesAmt > report.TopProducts[j].SalesAmt
	})
	if len(report.TopProducts) > topListSize {
		report.TopProducts = report.TopProducts[:topListSize]
	}

	for _, agg := range customers {
		report.TopCustomers = append(report.TopCustomers, domain.TopCustomer{
			Name:       agg.name,
			TotalSpent: round2(agg.spent),
			BillCount:  agg.bills,
		})
	}
	sort.Slice(report.TopCustomers, func(i, j int) bool {
		return report.TopCustomers[i].TotalSpent > report.TopCustomers[j].TotalSpent
	})
	if len(report.TopCustomers) > topListSize {
		report.TopCustomers = report.TopCustomers[:topListSize]
	}

	return report, nil
}

// StockAlerts flags ledger rows at or below the low-stock threshold and
// products whose purchased batches expire within the warning window.
func (s *Service) StockAlerts(ctx context.Context) (*domain.StockAlerts, error) {
	alerts := &domain.StockAlerts{}

	levels, err := s.repo.GetStockMap(ctx)
	if err != nil {
		return nil, err
	}
	for _, level := range levels {
		if level.Available <= lowStockThreshold {
			alerts.LowStock = append(alerts.LowStock, level)
		}
	}
	sort.Slice(alerts.LowStock, func(i, j int) bool {
		return alerts.LowStock[i].Product < alerts.LowStock[j].Product
	})

	now := s.now()
	items, err := s.repo.ListPurchaseItems(ctx, now.AddDate(-purchaseLookback, 0, 0), now)
	if err != nil {
		return nil, err
	}
	deadline := now.AddDate(0, 0, nearExpiryDays)
	seen := make(map[string]bool)
	for _, item := range items {
		if item.Expiry == "" {
			continue
		}
		expiry, err := time.Parse(domain.DateLayout, item.Expiry)
		if err != nil {
			continue
		}
		if expiry.After(deadline) {
			continue
		}
		key := domain.NormalizeProductKey(item.Product)
		if seen[key] {
			continue
		}
		seen[key] = true
		alerts.NearExpiry = append(alerts.NearExpiry, item.Product)
	}
	sort.Strings(alerts.NearExpiry)

	return alerts, nil
}
