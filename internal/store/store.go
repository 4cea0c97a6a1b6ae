package store

import (
	"context"
	"errors"
	"time"

	"kisanpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidRecord     = errors.New("invalid record")
)

type Repository interface {
	CreatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice) error
	GetPurchaseInvoice(ctx context.Context, invoiceNo string) (*domain.PurchaseInvoice, error)
	DeletePurchaseInvoice(ctx context.Context, invoiceNo string) error
	ListPurchaseInvoices(ctx context.Context, from time.Time, to time.Time, vendor string) ([]domain.PurchaseInvoice, error)
	ListPurchaseItems(ctx context.Context, from time.Time, to time.Time) ([]domain.PurchaseItem, error)

	GetStock(ctx context.Context, product string) (float64, error)
	GetStockMap(ctx context.Context) (map[string]domain.StockLevel, error)
	AddStock(ctx context.Context, product string, qty float64, unit string) error
	SubtractStock(ctx context.Context, product string, qty float64) error
	SetStock(ctx context.Context, product string, qty float64, unit string) error

	CreateBill(ctx context.Context, bill domain.Bill) error
	GetBill(ctx context.Context, billNumber int64) (*domain.Bill, error)
	UpdateBill(ctx context.Context, bill domain.Bill) error
	DeleteBill(ctx context.Context, billNumber int64) error
	ListBills(ctx context.Context, from time.Time, to time.Time, mobile string) ([]domain.Bill, error)
	MaxBillNumber(ctx context.Context) (int64, error)

	UpsertCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, mobile string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)

	GetLoyalty(ctx context.Context, mobile string) (*domain.LoyaltyAccount, error)
	AdjustLoyalty(ctx context.Context, mobile string, delta int64, at time.Time) (*domain.LoyaltyAccount, error)

	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
}
