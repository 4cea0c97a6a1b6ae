package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/service"
)

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		from, to, err := dateRange(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		invoices, err := a.service.ListPurchaseInvoices(r.Context(), from, to, r.URL.Query().Get("vendor"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
	case http.MethodPost:
		var req domain.PurchaseInvoiceSaveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		invoice, err := a.service.SavePurchaseInvoice(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"invoice": invoice})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleInvoiceSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	summaries, err := a.service.ListInvoiceSummaries(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
}

func (a *API) handlePurchaseActions(w http.ResponseWriter, r *http.Request) {
	invoiceNo := pathTail(r.URL.Path, "/api/v1/purchases/")
	if invoiceNo == "" {
		writeError(w, http.StatusBadRequest, errors.New("invoice number required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		invoice, err := a.service.GetPurchaseInvoice(r.Context(), invoiceNo)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	case http.MethodDelete:
		if err := a.service.DeletePurchaseInvoice(r.Context(), invoiceNo); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": invoiceNo})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleBills(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		from, to, err := dateRange(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		bills, err := a.service.ListBills(r.Context(), from, to, r.URL.Query().Get("mobile"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
	case http.MethodPost:
		var req domain.BillSaveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.SaveBill(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleNextBillNumber(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	next, err := a.service.NextBillNumber(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"next_bill_number": next})
}

func (a *API) handleBillActions(w http.ResponseWriter, r *http.Request) {
	billNumber, err := parseBillNumber(pathTail(r.URL.Path, "/api/v1/bills/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		bill, err := a.service.GetBill(r.Context(), billNumber)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bill": bill})
	case http.MethodPut:
		var req domain.BillUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.BillNumber = billNumber
		bill, err := a.service.UpdateBill(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bill": bill})
	case http.MethodDelete:
		if err := a.service.DeleteBill(r.Context(), billNumber); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": billNumber})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customers, err := a.service.ListCustomers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
	case http.MethodPost:
		var customer domain.Customer
		if err := decodeJSON(r, &customer); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := a.service.SaveCustomer(r.Context(), customer)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": saved})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	tail := pathTail(r.URL.Path, "/api/v1/customers/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("mobile number required"))
		return
	}

	if mobile, ok := strings.CutSuffix(tail, "/history"); ok {
		from, to, err := dateRange(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		bills, err := a.service.CustomerHistory(r.Context(), strings.Trim(mobile, "/"), from, to)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
		return
	}

	customer, err := a.service.LookupCustomer(r.Context(), tail)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleLoyaltyAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.LoyaltyAdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := a.service.AdjustLoyalty(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account})
}

func (a *API) handleLoyaltyLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	mobile := pathTail(r.URL.Path, "/api/v1/loyalty/")
	if mobile == "" {
		writeError(w, http.StatusBadRequest, errors.New("mobile number required"))
		return
	}
	account, err := a.service.GetLoyalty(r.Context(), mobile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account})
}

type stockCorrectionRequest struct {
	Product string  `json:"product"`
	Qty     float64 `json:"qty"`
	Unit    string  `json:"unit"`
}

// handleStockCorrection overwrites a ledger row after a physical count.
func (a *API) handleStockCorrection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req stockCorrectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.CorrectStock(r.Context(), req.Product, req.Qty, req.Unit); err != nil {
		writeServiceError(w, err)
		return
	}
	level, err := a.service.StockIndicator(r.Context(), req.Product, nil)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, level)
}

type stockIndicatorRequest struct {
	Product string            `json:"product"`
	Draft   []domain.BillItem `json:"draft"`
}

func (a *API) handleStockLevels(w http.ResponseWriter, r *http.Request) {
	// POST carries the unsaved draft lines for the billing screen's
	// live indicator.
	if r.Method == http.MethodPost {
		var req stockIndicatorRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(req.Product) == "" {
			writeError(w, http.StatusBadRequest, errors.New("product is required"))
			return
		}
		level, err := a.service.StockIndicator(r.Context(), req.Product, req.Draft)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, level)
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if product := strings.TrimSpace(r.URL.Query().Get("product")); product != "" {
		available, err := a.service.AvailableStock(r.Context(), product)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.StockLevel{Product: product, Available: available})
		return
	}

	levels, err := a.service.StockLevels(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": levels})
}

func (a *API) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	matches, err := a.service.AutocompleteProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": matches})
}

func (a *API) handleStockAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	alerts, err := a.service.StockAlerts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := a.service.SalesSummary(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type userCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	actor, ok := service.ActorFromContext(r.Context())
	if !ok || actor.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, errors.New("forbidden role"))
		return
	}

	var req userCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.CreateUser(r.Context(), req.Username, req.Password, req.Role); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"username": strings.TrimSpace(req.Username)})
}
