package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/store"
)

// upsertCustomer writes the customer to the store, refreshes the lookup
// cache, and mirrors the row into the customer workbook.
func (s *Service) upsertCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.CreatedAt = s.now()
	saved, err := s.repo.UpsertCustomer(ctx, customer)
	if err != nil {
		return nil, err
	}

	if err := s.customers.Set(ctx, saved, s.cacheTTL); err != nil {
		s.log.WithError(err).Warnf("customer cache set failed: mobile=%s", saved.Mobile)
		// Drop whatever stale payload the cache may still hold.
		if err := s.customers.Invalidate(ctx, saved.Mobile); err != nil {
			s.log.WithError(err).Warnf("customer cache invalidate failed: mobile=%s", saved.Mobile)
		}
	}
	if s.sink != nil {
		s.warnAudit("customer row", s.sink.UpsertCustomerRow(*saved))
	}
	return saved, nil
}

// SaveCustomer registers or updates a customer outside of billing.
// Blank fields in the request never erase stored values.
func (s *Service) SaveCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Mobile = domain.NormalizeMobile(customer.Mobile)
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Village = strings.TrimSpace(customer.Village)
	customer.Aadhar = strings.TrimSpace(customer.Aadhar)
	if customer.Mobile == "" {
		return nil, store.ErrInvalidRecord
	}
	customer.EntryBy = entryBy(ctx)
	return s.upsertCustomer(ctx, customer)
}

// LookupCustomer resolves a mobile number for the billing screen,
// cache first.
func (s *Service) LookupCustomer(ctx context.Context, mobile string) (*domain.Customer, error) {
	mobile = domain.NormalizeMobile(mobile)
	if mobile == "" {
		return nil, store.ErrInvalidRecord
	}

	cached, ok, err := s.customers.Get(ctx, mobile)
	if err != nil {
		s.log.WithError(err).Warnf("customer cache get failed: mobile=%s", mobile)
	}
	if ok {
		return cached, nil
	}

	customer, err := s.repo.GetCustomer(ctx, mobile)
	if err != nil {
		return nil, err
	}
	if err := s.customers.Set(ctx, customer, s.cacheTTL); err != nil {
		s.log.WithError(err).Warnf("customer cache set failed: mobile=%s", mobile)
	}
	return customer, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// CustomerHistory returns the bills recorded against a mobile number.
func (s *Service) CustomerHistory(ctx context.Context, mobile string, from, to time.Time) ([]domain.Bill, error) {
	mobile = domain.NormalizeMobile(mobile)
	if mobile == "" {
		return nil, store.ErrInvalidRecord
	}
	return s.repo.ListBills(ctx, from, to, mobile)
}

func (s *Service) GetLoyalty(ctx context.Context, mobile string) (*domain.LoyaltyAccount, error) {
	mobile = domain.NormalizeMobile(mobile)
	account, err := s.repo.GetLoyalty(ctx, mobile)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &domain.LoyaltyAccount{Mobile: mobile}, nil
		}
		return nil, err
	}
	return account, nil
}

// AdjustLoyalty applies a manual points adjustment. Redeeming is admin
// only and can never take the balance below zero.
func (s *Service) AdjustLoyalty(ctx context.Context, req domain.LoyaltyAdjustRequest) (*domain.LoyaltyAccount, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, store.ErrInvalidRecord
	}

	delta := req.Points
	if req.Mode == "redeem" {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}
		delta = -delta
	}

	mobile := domain.NormalizeMobile(req.Mobile)
	account, err := s.repo.AdjustLoyalty(ctx, mobile, delta, s.now())
	if err != nil {
		return nil, err
	}
	account.Reason = strings.TrimSpace(req.Reason)

	if s.sink != nil {
		s.warnAudit("loyalty row", s.sink.UpsertLoyaltyRow(*account))
	}
	return account, nil
}
