package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"kisanpos/backend/internal/audit"
	"kisanpos/backend/internal/config"
	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/finyear"
	"kisanpos/backend/internal/store"
)

// SavePurchaseInvoice records a vendor invoice. Re-saving an existing
// invoice number is an edit: the stored invoice is replaced wholesale.
// How the stock ledger reacts depends on the configured mode: symmetric
// applies the per-product difference between old and new lines, legacy
// adds every new line on top of whatever the old save already added.
func (s *Service) SavePurchaseInvoice(ctx context.Context, req domain.PurchaseInvoiceSaveRequest) (*domain.PurchaseInvoice, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, store.ErrInvalidRecord
	}

	date, err := time.Parse(domain.DateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return nil, store.ErrInvalidRecord
	}

	invoice := domain.PurchaseInvoice{
		InvoiceNo: strings.TrimSpace(req.InvoiceNo),
		Date:      date,
		Vendor:    strings.TrimSpace(req.Vendor),
		EntryBy:   entryBy(ctx),
	}
	for _, item := range req.Items {
		item.Product = strings.TrimSpace(item.Product)
		if item.Product == "" || item.Qty <= 0 || item.MRP < 0 {
			return nil, store.ErrInvalidRecord
		}
		item.Category = domain.NormalizeCategory(string(item.Category))
		invoice.Items = append(invoice.Items, item)
	}

	existing, err := s.repo.GetPurchaseInvoice(ctx, invoice.InvoiceNo)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		if err := s.repo.DeletePurchaseInvoice(ctx, invoice.InvoiceNo); err != nil {
			return nil, err
		}
	}
	if err := s.repo.CreatePurchaseInvoice(ctx, invoice); err != nil {
		return nil, err
	}

	if err := s.applyPurchaseStock(ctx, existing, invoice); err != nil {
		return nil, err
	}

	if s.sink != nil {
		if existing != nil {
			s.warnAudit("purchase remove", s.sink.RemoveInvoice(existing.Date, existing.InvoiceNo))
		}
		s.warnAudit("purchase append", s.sink.AppendInvoice(invoice))
	}

	return &invoice, nil
}

func sumByProduct(items []domain.PurchaseItem) (map[string]float64, map[string]string) {
	qty := make(map[string]float64, len(items))
	units := make(map[string]string, len(items))
	for _, item := range items {
		key := domain.NormalizeProductKey(item.Product)
		qty[key] += item.Qty
		if item.Unit != "" {
			units[key] = item.Unit
		}
	}
	return qty, units
}

func (s *Service) applyPurchaseStock(ctx context.Context, old *domain.PurchaseInvoice, invoice domain.PurchaseInvoice) error {
	newQty, units := sumByProduct(invoice.Items)
	displayNames := make(map[string]string, len(invoice.Items))
	for _, item := range invoice.Items {
		displayNames[domain.NormalizeProductKey(item.Product)] = item.Product
	}

	if old == nil || s.stockMode == config.PurchaseStockLegacy {
		for key, qty := range newQty {
			if err := s.repo.AddStock(ctx, displayNames[key], qty, units[key]); err != nil {
				return err
			}
		}
		return nil
	}

	oldQty, oldUnits := sumByProduct(old.Items)
	for key, qty := range oldQty {
		delta := newQty[key] - qty
		if delta < 0 {
			if err := s.repo.SubtractStock(ctx, key, -delta); err != nil {
				return err
			}
		}
		if _, ok := units[key]; !ok {
			units[key] = oldUnits[key]
		}
	}
	for key, qty := range newQty {
		delta := qty - oldQty[key]
		if delta > 0 {
			if err := s.repo.AddStock(ctx, displayNames[key], delta, units[key]); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeletePurchaseInvoice removes the invoice. In symmetric mode its stock
// contribution is reversed, flooring at zero where the goods were
// already sold; legacy mode leaves the ledger untouched, matching the
// old books. Admin only.
func (s *Service) DeletePurchaseInvoice(ctx context.Context, invoiceNo string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	invoiceNo = strings.TrimSpace(invoiceNo)
	invoice, err := s.repo.GetPurchaseInvoice(ctx, invoiceNo)
	if err != nil {
		return err
	}

	if err := s.repo.DeletePurchaseInvoice(ctx, invoiceNo); err != nil {
		return err
	}

	if s.stockMode == config.PurchaseStockSymmetric {
		qtys, _ := sumByProduct(invoice.Items)
		for key, qty := range qtys {
			if err := s.repo.SubtractStock(ctx, key, qty); err != nil {
				return err
			}
		}
	}

	if s.sink != nil {
		s.warnAudit("purchase remove", s.sink.RemoveInvoice(invoice.Date, invoiceNo))
	}
	return nil
}

// GetPurchaseInvoice reads the invoice from the database, falling back
// to the purchase workbooks for invoices recorded before the database
// mirror existed.
func (s *Service) GetPurchaseInvoice(ctx context.Context, invoiceNo string) (*domain.PurchaseInvoice, error) {
	invoiceNo = strings.TrimSpace(invoiceNo)
	invoice, err := s.repo.GetPurchaseInvoice(ctx, invoiceNo)
	if err == nil {
		return invoice, nil
	}
	if !errors.Is(err, store.ErrNotFound) || s.sink == nil {
		return nil, err
	}

	at := s.now()
	for _, label := range []string{finyear.Label(at), finyear.PreviousLabel(at)} {
		rows, readErr := s.sink.ReadPurchaseRows(label)
		if readErr != nil {
			return nil, readErr
		}
		var found *domain.PurchaseInvoice
		for _, row := range rows {
			if row.InvoiceNo != invoiceNo {
				continue
			}
			if found == nil {
				found = &domain.PurchaseInvoice{
					InvoiceNo: row.InvoiceNo,
					Date:      row.Date,
					Vendor:    row.Vendor,
					EntryBy:   row.EntryBy,
				}
			}
			found.Items = append(found.Items, row.Item)
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Service) ListPurchaseInvoices(ctx context.Context, from, to time.Time, vendor string) ([]domain.PurchaseInvoice, error) {
	return s.repo.ListPurchaseInvoices(ctx, from, to, strings.TrimSpace(vendor))
}

// ListInvoiceSummaries backs the invoice browser dropdown.
func (s *Service) ListInvoiceSummaries(ctx context.Context, from, to time.Time) ([]domain.InvoiceSummary, error) {
	invoices, err := s.repo.ListPurchaseInvoices(ctx, from, to, "")
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.InvoiceSummary, 0, len(invoices))
	for _, invoice := range invoices {
		summaries = append(summaries, domain.InvoiceSummary{
			InvoiceNo: invoice.InvoiceNo,
			Vendor:    invoice.Vendor,
		})
	}
	return summaries, nil
}

// openingInvoiceNo marks carried-forward rows in the purchase workbook.
// The literal matters: old workbooks already use it.
const openingInvoiceNo = "Opening Stock"

// CarryForwardOpeningStock copies last financial year's remaining
// purchase lines into the current year's purchase workbook as Opening
// Stock rows. Lines are aggregated by product identity (name, unit, MRP,
// GST rate, expiry, category); rows already carried are skipped, so the
// call is safe to repeat on every startup. The database stock ledger is
// continuous across years and is not touched.
func (s *Service) CarryForwardOpeningStock(ctx context.Context, at time.Time) (int, error) {
	if s.sink == nil {
		return 0, nil
	}
	// Rollover only happens once the new financial year has begun.
	if at.Month() < time.April {
		return 0, nil
	}

	currentLabel := finyear.Label(at)
	currentRows, err := s.sink.ReadPurchaseRows(currentLabel)
	if err != nil {
		return 0, err
	}
	carried := make(map[string]bool)
	for _, row := range currentRows {
		if row.InvoiceNo == openingInvoiceNo {
			carried[audit.OpeningKey(row.Item)] = true
		}
	}

	prevRows, err := s.sink.ReadPurchaseRows(finyear.PreviousLabel(at))
	if err != nil {
		return 0, err
	}
	if len(prevRows) == 0 {
		return 0, nil
	}

	aggregated := make(map[string]domain.PurchaseItem)
	order := make([]string, 0, len(prevRows))
	for _, row := range prevRows {
		if row.Item.Qty <= 0 {
			continue
		}
		key := audit.OpeningKey(row.Item)
		if item, ok := aggregated[key]; ok {
			item.Qty += row.Item.Qty
			aggregated[key] = item
		} else {
			aggregated[key] = row.Item
			order = append(order, key)
		}
	}

	opening := finyear.OpeningDate(at)
	rows := make([]audit.PurchaseRow, 0, len(order))
	for _, key := range order {
		if carried[key] {
			continue
		}
		rows = append(rows, audit.PurchaseRow{
			InvoiceNo: openingInvoiceNo,
			Date:      opening,
			Vendor:    "",
			Item:      aggregated[key],
			EntryBy:   audit.EntryByCarryForward,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := s.sink.AppendPurchaseRows(currentLabel, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
