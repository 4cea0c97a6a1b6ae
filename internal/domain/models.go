package domain

import (
	"strings"
	"time"
)

// Category is the closed product taxonomy used by the shop. Free-text
// categories coming from purchase entry are normalized via NormalizeCategory;
// anything that does not match stays empty and is excluded from the
// CategoryWise audit sheet.
type Category string

const (
	CategorySeeds      Category = "Seeds"
	CategoryPesticide  Category = "Pesticide"
	CategoryFertilizer Category = "Fertilizer"
	CategoryNone       Category = ""
)

func NormalizeCategory(raw string) Category {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "seed"):
		return CategorySeeds
	case strings.Contains(s, "pesticid"):
		return CategoryPesticide
	case strings.Contains(s, "fertil"):
		return CategoryFertilizer
	default:
		return CategoryNone
	}
}

const (
	PaymentModeCash = "Cash"
	PaymentModeUPI  = "UPI"
	PaymentModeBoth = "Both"
)

func IsSupportedPaymentMode(mode string) bool {
	switch mode {
	case PaymentModeCash, PaymentModeUPI, PaymentModeBoth:
		return true
	default:
		return false
	}
}

// PurchaseItem is one line of a vendor invoice. MRP is inclusive of GST;
// GSTRate is kept verbatim ("NIL", "0", "5", "12", "18", "28") because the
// audit files store it as entered. Expiry is the dd-MM-yyyy string form,
// empty when the product has no expiry.
type PurchaseItem struct {
	Product  string   `json:"product"`
	Qty      float64  `json:"qty"`
	Unit     string   `json:"unit"`
	MRP      float64  `json:"mrp"`
	GSTRate  string   `json:"gst_rate"`
	Expiry   string   `json:"expiry,omitempty"`
	Category Category `json:"category,omitempty"`
}

type PurchaseInvoice struct {
	InvoiceNo string         `json:"invoice_no"`
	Date      time.Time      `json:"date"`
	Vendor    string         `json:"vendor"`
	EntryBy   string         `json:"entry_by"`
	Items     []PurchaseItem `json:"items"`
}

type PurchaseInvoiceSaveRequest struct {
	InvoiceNo string         `json:"invoice_no" validate:"required"`
	Date      string         `json:"date" validate:"required"`
	Vendor    string         `json:"vendor" validate:"required"`
	Items     []PurchaseItem `json:"items" validate:"required,min=1,dive"`
}

// InvoiceSummary is a list entry for the invoice browser.
type InvoiceSummary struct {
	InvoiceNo string `json:"invoice_no"`
	Vendor    string `json:"vendor"`
}

// BillItem is one line of a sales bill. The same product may appear on
// multiple lines of one bill; stock checks aggregate by normalized name.
type BillItem struct {
	Product string  `json:"product"`
	Qty     float64 `json:"qty"`
	Price   float64 `json:"price"`
}

type Payment struct {
	Mode    string  `json:"mode"`
	CashAmt float64 `json:"cash_amount"`
	UPIAmt  float64 `json:"upi_amount"`
}

type Bill struct {
	BillNumber int64      `json:"bill_number"`
	DateTime   time.Time  `json:"date_time"`
	Customer   Customer   `json:"customer"`
	Items      []BillItem `json:"items"`
	Subtotal   float64    `json:"subtotal"`
	Discount   float64    `json:"discount"`
	GSTTotal   float64    `json:"gst_total"`
	Total      float64    `json:"total"`
	Payment    Payment    `json:"payment"`
	EntryBy    string     `json:"entry_by"`
}

type BillSaveRequest struct {
	CustomerName string     `json:"customer_name" validate:"required"`
	Mobile       string     `json:"mobile" validate:"required"`
	Village      string     `json:"village"`
	Aadhar       string     `json:"aadhar"`
	Items        []BillItem `json:"items" validate:"required,min=1,dive"`
	Discount     float64    `json:"discount" validate:"gte=0"`
	PaymentMode  string     `json:"payment_mode" validate:"required"`
	CashAmt      float64    `json:"cash_amount" validate:"gte=0"`
	UPIAmt       float64    `json:"upi_amount" validate:"gte=0"`
}

type BillUpdateRequest struct {
	BillNumber   int64      `json:"bill_number" validate:"required,gt=0"`
	CustomerName string     `json:"customer_name" validate:"required"`
	Mobile       string     `json:"mobile" validate:"required"`
	Village      string     `json:"village"`
	Aadhar       string     `json:"aadhar"`
	Items        []BillItem `json:"items" validate:"required,min=1,dive"`
	Discount     float64    `json:"discount" validate:"gte=0"`
	PaymentMode  string     `json:"payment_mode" validate:"required"`
	CashAmt      float64    `json:"cash_amount" validate:"gte=0"`
	UPIAmt       float64    `json:"upi_amount" validate:"gte=0"`
}

type BillSaveResponse struct {
	BillNumber int64   `json:"bill_number"`
	Total      float64 `json:"total"`
	GSTTotal   float64 `json:"gst_total"`
	CreatedAt  string  `json:"created_at"`
}

// Customer is keyed by digits-only normalized mobile number.
type Customer struct {
	Mobile    string    `json:"mobile"`
	Name      string    `json:"name"`
	Village   string    `json:"village"`
	Aadhar    string    `json:"aadhar"`
	EntryBy   string    `json:"entry_by"`
	CreatedAt time.Time `json:"created_at"`
}

type LoyaltyAccount struct {
	Mobile    string    `json:"mobile"`
	Points    int64     `json:"points"`
	UpdatedAt time.Time `json:"updated_at"`
	Reason    string    `json:"reason"`
}

type LoyaltyAdjustRequest struct {
	Mobile string `json:"mobile" validate:"required"`
	Points int64  `json:"points" validate:"required,gt=0"`
	Mode   string `json:"mode" validate:"required,oneof=add redeem"`
	Reason string `json:"reason"`
}

// StockLevel is the UI-facing live stock indicator payload.
type StockLevel struct {
	Product   string  `json:"product"`
	Available float64 `json:"available"`
	Planned   float64 `json:"planned,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated staff member; Username lands in entry_by on
// every record they create.
type Actor struct {
	Username string
	Role     string
}

// UserAccount is the internal persistence model for staff credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type TopProduct struct {
	Product  string  `json:"product"`
	QtySold  float64 `json:"qty_sold"`
	SalesAmt float64 `json:"sales_amount"`
}

type TopCustomer struct {
	Name       string  `json:"name"`
	TotalSpent float64 `json:"total_spent"`
	BillCount  int     `json:"bill_count"`
}

type MonthlySales struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

type SalesReport struct {
	From         string         `json:"from"`
	To           string         `json:"to"`
	BillCount    int            `json:"bill_count"`
	GrossTotal   float64        `json:"gross_total"`
	Monthly      []MonthlySales `json:"monthly"`
	TopProducts  []TopProduct   `json:"top_products"`
	TopCustomers []TopCustomer  `json:"top_customers"`
}

type StockAlerts struct {
	LowStock   []StockLevel `json:"low_stock"`
	NearExpiry []string     `json:"near_expiry"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Date layouts shared by the stores and the audit files.
const (
	DateLayout     = "02-01-2006"
	DateTimeLayout = "2006-01-02 15:04:05"
)
