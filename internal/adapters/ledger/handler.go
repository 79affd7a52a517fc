// Package ledger exposes the traceability service over HTTP/JSON.
package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fairtrace/internal/core"
	"fairtrace/pkg/domain"
)

// Service is the subset of core.Service the HTTP surface needs.
type Service interface {
	Register(ctx context.Context, in core.RegisterInput) (domain.ProductRecord, error)
	TransferToDistributor(ctx context.Context, productID string, price decimal.Decimal) (domain.ProductRecord, error)
	TransferToRetailer(ctx context.Context, productID string, price decimal.Decimal) (domain.ProductRecord, error)
	Get(ctx context.Context, productID string) (domain.ProductRecord, error)
	ListAvailable(ctx context.Context, category domain.OwnerCategory) ([]core.ProductSummary, error)
	History(ctx context.Context, productID string) ([]domain.TransferRecord, error)
	Trace(ctx context.Context, productID string) (core.TraceReport, error)
	Ledger(ctx context.Context) ([]domain.TransferRecord, error)
}

var _ Service = (*core.Service)(nil)

// Handler serves the ledger API. Exports and Metrics are optional; their
// routes are not mounted when nil.
type Handler struct {
	Service Service
	Exports *Exporter
	Metrics http.Handler
	Logger  logrus.FieldLogger
}

// NewHandler constructs a ledger HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{Service: svc}
}

// Router builds the mux with request id and logging middleware applied.
func (h *Handler) Router() *mux.Router {
	logger := h.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware(logger))
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/products", h.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/products", h.handleList).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}/distributor", h.handleTransfer(domain.CategoryDistributor)).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}/retailer", h.handleTransfer(domain.CategoryRetailer)).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}/history", h.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}/trace", h.handleTrace).Methods(http.MethodGet)
	api.HandleFunc("/ledger", h.handleLedger).Methods(http.MethodGet)
	if h.Exports != nil {
		api.HandleFunc("/ledger/exports", h.handleExportCreate).Methods(http.MethodPost)
		api.HandleFunc("/ledger/exports", h.handleExportList).Methods(http.MethodGet)
		api.HandleFunc("/ledger/exports/{name}", h.handleExportDownload).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	FarmerName  string           `json:"farmer_name"`
	ProductName string           `json:"product_name"`
	Price       *decimal.Decimal `json:"price"`
}

type priceRequest struct {
	Price *decimal.Decimal `json:"price"`
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func requirePrice(p *decimal.Decimal) (decimal.Decimal, error) {
	if p == nil {
		return decimal.Decimal{}, domain.ValidationError{Field: "price", Reason: "price is required"}
	}
	return *p, nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid register request payload")
		return
	}
	price, err := requirePrice(req.Price)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	product, err := h.Service.Register(r.Context(), core.RegisterInput{
		FarmerName:  req.FarmerName,
		ProductName: req.ProductName,
		Price:       price,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/products/"+product.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseOwnerCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	products, err := h.Service.ListAvailable(r.Context(), category)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category, "products": products})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	product, err := h.Service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *Handler) handleTransfer(target domain.OwnerCategory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req priceRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid transfer request payload")
			return
		}
		price, err := requirePrice(req.Price)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		id := mux.Vars(r)["id"]
		var product domain.ProductRecord
		if target == domain.CategoryRetailer {
			product, err = h.Service.TransferToRetailer(r.Context(), id, price)
		} else {
			product, err = h.Service.TransferToDistributor(r.Context(), id, price)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) handleTrace(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.Trace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trace": report})
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.Ledger(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

type exportRequest struct {
	Format string `json:"format"`
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid export request payload")
		return
	}
	format, err := ParseFormat(req.Format)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	info, err := h.Exports.Export(r.Context(), format)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"export": info})
}

func (h *Handler) handleExportList(w http.ResponseWriter, r *http.Request) {
	infos, err := h.Exports.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": infos})
}

func (h *Handler) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	info, body, err := h.Exports.Open(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer func() { _ = body.Close() }()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
