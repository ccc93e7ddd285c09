package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/service"
	"github.com/bierserv/api/internal/settings"
	"github.com/bierserv/api/internal/ws"
)

const defaultRequestType = "call_waiter"

// PublicStore defines the database methods needed by the customer-facing
// endpoints. Satisfied by *database.Queries; narrow interface for testability.
type PublicStore interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]database.Category, error)
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	ListPriceVariantsByProducts(ctx context.Context, productIDs []uuid.UUID) ([]database.ProductPriceVariant, error)
	GetTableByQRCode(ctx context.Context, qrCode string) (database.Table, error)
	CreateServiceRequest(ctx context.Context, arg database.CreateServiceRequestParams) (database.ServiceRequest, error)
}

// PublicHandler serves the menu and takes orders and waiter calls from
// customers identified by their table's QR code.
type PublicHandler struct {
	store    PublicStore
	orders   OrderWorkflow
	settings SettingsReader
	events   service.EventPublisher
}

// NewPublicHandler creates a new PublicHandler. events may be nil.
func NewPublicHandler(store PublicStore, orders OrderWorkflow, settings SettingsReader, events service.EventPublisher) *PublicHandler {
	return &PublicHandler{store: store, orders: orders, settings: settings, events: events}
}

// RegisterRoutes registers the unauthenticated endpoints at /public.
func (h *PublicHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.Menu)
	r.Post("/orders", h.CreateOrder)
	r.Post("/service-requests", h.CreateServiceRequest)
}

// --- Request / Response types ---

type publicOrderRequest struct {
	TableQR       string             `json:"table_qr" validate:"required,max=64"`
	CustomerNotes string             `json:"customer_notes" validate:"max=500"`
	Items         []orderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

type publicServiceRequest struct {
	TableQR     string `json:"table_qr" validate:"required,max=64"`
	RequestType string `json:"request_type" validate:"omitempty,oneof=call_waiter request_bill"`
}

type menuBusiness struct {
	Name         string `json:"name"`
	Subtitle     string `json:"subtitle"`
	LogoURL      string `json:"logo_url"`
	PrimaryColor string `json:"primary_color"`
	ContactInfo  string `json:"contact_info"`
}

type menuTable struct {
	ID     uuid.UUID `json:"id"`
	Number string    `json:"number"`
}

type menuPrice struct {
	Volume string  `json:"volume"`
	Price  *string `json:"price,omitempty"`
}

type menuProduct struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Description    *string     `json:"description"`
	ImageURL       *string     `json:"image_url"`
	ComingSoon     bool        `json:"coming_soon"`
	IBU            *string     `json:"ibu"`
	ABV            *string     `json:"abv"`
	Harmonizations []string    `json:"harmonizations"`
	PriceVariants  []menuPrice `json:"price_variants"`
}

type menuCategory struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	ImageURL    *string       `json:"image_url"`
	Products    []menuProduct `json:"products"`
}

type menuResponse struct {
	Business        menuBusiness                `json:"business"`
	Features        settings.Features           `json:"features"`
	Display         settings.DisplayPreferences `json:"display_preferences"`
	Table           *menuTable                  `json:"table"`
	OrderingEnabled bool                        `json:"ordering_enabled"`
	Categories      []menuCategory              `json:"categories"`
}

// --- Handlers ---

// Menu returns the public menu. Prices are left out when the business hides
// them, and ordering is only enabled for a known table unless table
// selection is optional.
func (h *PublicHandler) Menu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := loadSettings(ctx, h.settings)

	var table *menuTable
	if qr := strings.TrimSpace(r.URL.Query().Get("table")); qr != "" {
		t, err := h.store.GetTableByQRCode(ctx, qr)
		switch {
		case err == nil:
			table = &menuTable{ID: t.ID, Number: t.Number}
		case errors.Is(err, pgx.ErrNoRows):
		default:
			internalError(w, r, err, "get table by qr code")
			return
		}
	}

	categories, err := h.store.ListCategories(ctx, true)
	if err != nil {
		internalError(w, r, err, "list categories")
		return
	}
	products, err := h.store.ListProducts(ctx, database.ListProductsParams{})
	if err != nil {
		internalError(w, r, err, "list products")
		return
	}
	visible := products[:0:0]
	for _, p := range products {
		if p.IsAvailable {
			visible = append(visible, p)
		}
	}
	variants, err := variantsByProduct(ctx, h.store, visible)
	if err != nil {
		internalError(w, r, err, "list price variants")
		return
	}

	byCategory := make(map[uuid.UUID][]menuProduct, len(categories))
	for _, p := range visible {
		byCategory[p.CategoryID] = append(byCategory[p.CategoryID], toMenuProduct(p, variants[p.ID], s.Features.ShowPricesPublic))
	}

	resp := menuResponse{
		Business: menuBusiness{
			Name:         s.BusinessName,
			Subtitle:     s.Subtitle,
			LogoURL:      s.LogoURL,
			PrimaryColor: s.PrimaryColor,
			ContactInfo:  s.ContactInfo,
		},
		Features:        s.Features,
		Display:         s.Display,
		Table:           table,
		OrderingEnabled: table != nil || !s.Features.RequireTableSelection,
		Categories:      make([]menuCategory, 0, len(categories)),
	}
	for _, c := range categories {
		items := byCategory[c.ID]
		if len(items) == 0 {
			continue
		}
		resp.Categories = append(resp.Categories, menuCategory{
			ID:          c.ID,
			Name:        c.Name,
			Description: textPtr(c.Description),
			ImageURL:    textPtr(c.ImageUrl),
			Products:    items,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateOrder submits a customer order for the table behind table_qr.
func (h *PublicHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req publicOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	table, ok := h.tableByQR(w, r, req.TableQR)
	if !ok {
		return
	}

	submit, err := toSubmitRequest(table.ID.String(), req.CustomerNotes, req.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	submit.Source = database.OrderSourceCustomer

	res, err := h.orders.SubmitOrder(r.Context(), submit)
	if err != nil {
		writeServiceError(w, r, err, "submit customer order")
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(res.Order, res.Items))
}

// CreateServiceRequest records a waiter call and notifies the staff board.
func (h *PublicHandler) CreateServiceRequest(w http.ResponseWriter, r *http.Request) {
	var req publicServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	table, ok := h.tableByQR(w, r, req.TableQR)
	if !ok {
		return
	}
	requestType := req.RequestType
	if requestType == "" {
		requestType = defaultRequestType
	}

	sr, err := h.store.CreateServiceRequest(r.Context(), database.CreateServiceRequestParams{
		TableID:     table.ID,
		TableNumber: table.Number,
		RequestType: requestType,
	})
	if err != nil {
		internalError(w, r, err, "create service request")
		return
	}

	resp := toServiceRequestResponse(sr)
	publish(h.events, ws.EventServiceRequestCreated, resp, ws.TopicStaff, ws.TableTopic(table.ID))
	log.Info().Str("table", table.Number).Str("type", requestType).Msg("service request created")
	writeJSON(w, http.StatusCreated, resp)
}

// --- Helpers ---

func (h *PublicHandler) tableByQR(w http.ResponseWriter, r *http.Request, qr string) (database.Table, bool) {
	table, err := h.store.GetTableByQRCode(r.Context(), strings.TrimSpace(qr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "table not found")
			return database.Table{}, false
		}
		internalError(w, r, err, "get table by qr code")
		return database.Table{}, false
	}
	return table, true
}

func toMenuProduct(p database.Product, variants []database.ProductPriceVariant, showPrices bool) menuProduct {
	mp := menuProduct{
		ID:             p.ID,
		Name:           p.Name,
		Description:    textPtr(p.Description),
		ImageURL:       textPtr(p.ImageUrl),
		ComingSoon:     p.ComingSoon,
		IBU:            optionalNumericString(p.Ibu),
		ABV:            optionalNumericString(p.Abv),
		Harmonizations: p.Harmonizations,
		PriceVariants:  make([]menuPrice, len(variants)),
	}
	if mp.Harmonizations == nil {
		mp.Harmonizations = []string{}
	}
	for i, v := range variants {
		mp.PriceVariants[i] = menuPrice{Volume: v.Volume}
		if showPrices {
			price := numericToString(v.Price)
			mp.PriceVariants[i].Price = &price
		}
	}
	return mp
}
