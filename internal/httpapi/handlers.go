package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/supermarket-teller/internal/cart"
	"github.com/noah-isme/supermarket-teller/internal/catalog"
	"github.com/noah-isme/supermarket-teller/internal/common"
	"github.com/noah-isme/supermarket-teller/internal/money"
	"github.com/noah-isme/supermarket-teller/internal/offer"
	"github.com/noah-isme/supermarket-teller/internal/product"
	"github.com/noah-isme/supermarket-teller/internal/receipt"
	"github.com/noah-isme/supermarket-teller/internal/resilience"
	"github.com/noah-isme/supermarket-teller/internal/tasks"
	"github.com/noah-isme/supermarket-teller/internal/teller"
)

// SavingsReader serves aggregated savings reports.
type SavingsReader interface {
	Report(ctx context.Context, day time.Time) (tasks.Report, error)
}

// Handler serves the pricing API.
type Handler struct {
	Teller  *teller.Teller
	Catalog catalog.Catalog
	// Savings is optional; the savings route answers 404 without it.
	Savings SavingsReader
	Printer receipt.Printer
	Logger  zerolog.Logger
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type checkoutItem struct {
	Name     string          `json:"name" validate:"required,max=120"`
	Unit     product.Unit    `json:"unit"`
	Quantity decimal.Decimal `json:"quantity"`
}

type checkoutRequest struct {
	Items []checkoutItem `json:"items" validate:"required,min=1,max=500,dive"`
}

type productRequest struct {
	Name  string          `json:"name" validate:"required,max=120"`
	Unit  product.Unit    `json:"unit"`
	Price decimal.Decimal `json:"price"`
}

type productView struct {
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Price string `json:"price"`
}

// Checkout prices a cart and returns the receipt.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	c := cart.New()
	for i, item := range req.Items {
		if err := c.AddItemQuantity(product.New(strings.TrimSpace(item.Name), item.Unit), item.Quantity); err != nil {
			common.WriteError(w, common.BadRequest("quantity must be positive", map[string]any{"item": i}))
			return
		}
	}
	rec, err := h.Teller.ChecksOutArticlesFrom(r.Context(), c)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		common.Text(w, http.StatusCreated, h.Printer.Print(rec))
		return
	}
	common.Data(w, http.StatusCreated, viewReceipt(rec))
}

// ListOffers returns the registered offers in registration order.
func (h *Handler) ListOffers(w http.ResponseWriter, _ *http.Request) {
	offers := h.Teller.Offers()
	specs := make([]offer.Spec, 0, len(offers))
	for _, o := range offers {
		specs = append(specs, offer.SpecOf(o))
	}
	common.Data(w, http.StatusOK, specs)
}

// ProductPrice returns a product's unit price.
func (h *Handler) ProductPrice(w http.ResponseWriter, r *http.Request) {
	unit, err := product.ParseUnit(r.URL.Query().Get("unit"))
	if err != nil {
		common.WriteError(w, common.BadRequest("unknown unit", nil))
		return
	}
	p := product.New(chi.URLParam(r, "name"), unit)
	price, err := h.Catalog.UnitPrice(r.Context(), p)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, productView{Name: p.Name, Unit: p.Unit.String(), Price: money.Format(price)})
}

// AddOffer registers an offer after the existing ones.
func (h *Handler) AddOffer(w http.ResponseWriter, r *http.Request) {
	var spec offer.Spec
	if err := decodeJSON(r, &spec); err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := offer.Build(spec)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Teller.AddSpecialOffer(o)
	sub, _ := common.Subject(r.Context())
	h.Logger.Info().Str("kind", string(o.Kind())).Str("subject", sub).Msg("offer registered")
	common.Data(w, http.StatusCreated, offer.SpecOf(o))
}

// PutProduct sets a product's unit price.
func (h *Handler) PutProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	p := product.New(strings.TrimSpace(req.Name), req.Unit)
	if err := h.Catalog.AddProduct(r.Context(), p, req.Price); err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, productView{Name: p.Name, Unit: p.Unit.String(), Price: money.Format(req.Price)})
}

// SavingsReport returns the discounts aggregated for a day (default today, UTC).
func (h *Handler) SavingsReport(w http.ResponseWriter, r *http.Request) {
	if h.Savings == nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "savings reporting is disabled", nil)
		return
	}
	day := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse(tasks.DateLayout, raw)
		if err != nil {
			common.WriteError(w, common.BadRequest("date must be YYYY-MM-DD", nil))
			return
		}
		day = parsed
	}
	report, err := h.Savings.Report(r.Context(), day)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, report)
}

// decodeJSON reads the body into dst without validating it.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return common.NewAppError("PAYLOAD_TOO_LARGE", "request entity too large", http.StatusRequestEntityTooLarge, err)
		}
		return common.BadRequest("invalid payload", nil)
	}
	return nil
}

func decode(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			return common.BadRequest("validation failed", fields)
		}
		return common.BadRequest("invalid payload", nil)
	}
	return nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_PRODUCT", err.Error(), nil)
	case errors.Is(err, resilience.ErrOpenCircuit):
		common.JSONError(w, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "catalog temporarily unavailable", nil)
	case errors.Is(err, offer.ErrInvalidOffer):
		common.JSONError(w, http.StatusBadRequest, "INVALID_OFFER", err.Error(), nil)
	case errors.Is(err, catalog.ErrInvalidPrice), errors.Is(err, cart.ErrInvalidQuantity):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case common.IsAppError(err):
		common.WriteError(w, err)
	default:
		h.Logger.Error().Err(err).Msg("request failed")
		common.WriteError(w, err)
	}
}
