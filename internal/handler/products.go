package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/service"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SetProductAvailability(ctx context.Context, arg database.SetProductAvailabilityParams) (database.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListPriceVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductPriceVariant, error)
	ListPriceVariantsByProducts(ctx context.Context, productIDs []uuid.UUID) ([]database.ProductPriceVariant, error)
	CreatePriceVariant(ctx context.Context, arg database.CreatePriceVariantParams) (database.ProductPriceVariant, error)
	DeletePriceVariantsByProduct(ctx context.Context, productID uuid.UUID) error
}

// NewProductStore creates a ProductStore from a DBTX (pool or tx).
type NewProductStore func(db database.DBTX) ProductStore

// Numeric product field bounds.
var (
	maxPrice = decimal.NewFromInt(99999)
	maxIBU   = decimal.NewFromInt(200)
	maxABV   = decimal.NewFromInt(100)
)

// ProductHandler handles product endpoints. A product and its price variants
// are written in one transaction.
type ProductHandler struct {
	store    ProductStore
	pool     service.TxBeginner
	newStore NewProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, pool service.TxBeginner, newStore NewProductStore) *ProductHandler {
	return &ProductHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterReadRoutes registers the staff read endpoints at /products.
func (h *ProductHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterWriteRoutes registers the manager endpoints at /products.
func (h *ProductHandler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/availability", h.SetAvailability)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type priceVariantRequest struct {
	Volume string      `json:"volume" validate:"required,max=40"`
	Price  json.Number `json:"price" validate:"required"`
}

type productRequest struct {
	CategoryID      string                `json:"category_id" validate:"required,uuid"`
	Name            string                `json:"name" validate:"required,max=120"`
	Description     *string               `json:"description" validate:"omitempty,max=2000"`
	ImageURL        *string               `json:"image_url" validate:"omitempty,max=500"`
	IsAvailable     *bool                 `json:"is_available"`
	ComingSoon      bool                  `json:"coming_soon"`
	IBU             *json.Number          `json:"ibu"`
	ABV             *json.Number          `json:"abv"`
	Harmonizations  []string              `json:"harmonizations" validate:"max=30,dive,max=60"`
	SortOrder       int32                 `json:"sort_order" validate:"min=0"`
	PriceVariants   []priceVariantRequest `json:"price_variants" validate:"required,min=1,max=20,dive"`
	ExpectedVersion *int32                `json:"expected_version"`
}

type availabilityRequest struct {
	IsAvailable bool `json:"is_available"`
	ComingSoon  bool `json:"coming_soon"`
}

type priceVariantResponse struct {
	Volume string `json:"volume"`
	Price  string `json:"price"`
}

type productResponse struct {
	ID             uuid.UUID              `json:"id"`
	CategoryID     uuid.UUID              `json:"category_id"`
	Name           string                 `json:"name"`
	Description    *string                `json:"description"`
	ImageURL       *string                `json:"image_url"`
	IsAvailable    bool                   `json:"is_available"`
	ComingSoon     bool                   `json:"coming_soon"`
	IBU            *string                `json:"ibu"`
	ABV            *string                `json:"abv"`
	Harmonizations []string               `json:"harmonizations"`
	SortOrder      int32                  `json:"sort_order"`
	Version        int32                  `json:"version"`
	PriceVariants  []priceVariantResponse `json:"price_variants"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func toProductResponse(p database.Product, variants []database.ProductPriceVariant) productResponse {
	resp := productResponse{
		ID:             p.ID,
		CategoryID:     p.CategoryID,
		Name:           p.Name,
		Description:    textPtr(p.Description),
		ImageURL:       textPtr(p.ImageUrl),
		IsAvailable:    p.IsAvailable,
		ComingSoon:     p.ComingSoon,
		IBU:            optionalNumericString(p.Ibu),
		ABV:            optionalNumericString(p.Abv),
		Harmonizations: p.Harmonizations,
		SortOrder:      p.SortOrder,
		Version:        p.Version,
		PriceVariants:  toPriceVariantResponses(variants),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if resp.Harmonizations == nil {
		resp.Harmonizations = []string{}
	}
	return resp
}

func toPriceVariantResponses(variants []database.ProductPriceVariant) []priceVariantResponse {
	out := make([]priceVariantResponse, len(variants))
	for i, v := range variants {
		out[i] = priceVariantResponse{Volume: v.Volume, Price: numericToString(v.Price)}
	}
	return out
}

// --- Handlers ---

// List returns products with their prices. Filters: category_id, available=true.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListProductsParams{
		AvailableOnly: r.URL.Query().Get("available") == "true",
	}
	if s := r.URL.Query().Get("category_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		params.CategoryID = pgtype.UUID{Bytes: id, Valid: true}
	}

	products, err := h.store.ListProducts(r.Context(), params)
	if err != nil {
		internalError(w, r, err, "list products")
		return
	}
	byProduct, err := variantsByProduct(r.Context(), h.store, products)
	if err != nil {
		internalError(w, r, err, "list price variants")
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p, byProduct[p.ID])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	p, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		internalError(w, r, err, "get product")
		return
	}
	variants, err := h.store.ListPriceVariantsByProduct(r.Context(), p.ID)
	if err != nil {
		internalError(w, r, err, "list price variants")
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p, variants))
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeProduct(w, r)
	if !ok {
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		internalError(w, r, err, "create product: begin tx")
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	store := h.newStore(tx)
	p, err := store.CreateProduct(r.Context(), database.CreateProductParams{
		CategoryID:     in.categoryID,
		Name:           in.name,
		Description:    in.description,
		ImageUrl:       in.imageURL,
		IsAvailable:    in.isAvailable,
		ComingSoon:     in.comingSoon,
		Ibu:            in.ibu,
		Abv:            in.abv,
		Harmonizations: in.harmonizations,
		SortOrder:      in.sortOrder,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "category not found")
			return
		}
		internalError(w, r, err, "create product")
		return
	}

	variants, err := writeVariants(r.Context(), store, p.ID, in.variants)
	if err != nil {
		internalError(w, r, err, "create price variants")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		internalError(w, r, err, "create product: commit")
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p, variants))
}

// Update replaces a product and its price list. With expected_version the
// write only applies to that version.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	in, ok := decodeProduct(w, r)
	if !ok {
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		internalError(w, r, err, "update product: begin tx")
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	store := h.newStore(tx)
	p, err := store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:              id,
		CategoryID:      in.categoryID,
		Name:            in.name,
		Description:     in.description,
		ImageUrl:        in.imageURL,
		IsAvailable:     in.isAvailable,
		ComingSoon:      in.comingSoon,
		Ibu:             in.ibu,
		Abv:             in.abv,
		Harmonizations:  in.harmonizations,
		SortOrder:       in.sortOrder,
		ExpectedVersion: optionalInt4(in.expectedVersion),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeMissingOrStale(w, r, store, id, in.expectedVersion)
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "category not found")
			return
		}
		internalError(w, r, err, "update product")
		return
	}

	if err := store.DeletePriceVariantsByProduct(r.Context(), p.ID); err != nil {
		internalError(w, r, err, "delete price variants")
		return
	}
	variants, err := writeVariants(r.Context(), store, p.ID, in.variants)
	if err != nil {
		internalError(w, r, err, "create price variants")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		internalError(w, r, err, "update product: commit")
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p, variants))
}

func (h *ProductHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req availabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.store.SetProductAvailability(r.Context(), database.SetProductAvailabilityParams{
		ID:          id,
		IsAvailable: req.IsAvailable,
		ComingSoon:  req.ComingSoon,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		internalError(w, r, err, "set product availability")
		return
	}
	variants, err := h.store.ListPriceVariantsByProduct(r.Context(), p.ID)
	if err != nil {
		internalError(w, r, err, "list price variants")
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p, variants))
}

// Delete removes a product. Order items keep their name and price snapshot.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if _, err := h.store.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusConflict, "product is in use")
			return
		}
		internalError(w, r, err, "delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// productInput is a decoded and range-checked productRequest.
type productInput struct {
	categoryID      uuid.UUID
	name            string
	description     pgtype.Text
	imageURL        pgtype.Text
	isAvailable     bool
	comingSoon      bool
	ibu             pgtype.Numeric
	abv             pgtype.Numeric
	harmonizations  []string
	sortOrder       int32
	variants        []variantInput
	expectedVersion *int32
}

type variantInput struct {
	volume string
	price  decimal.Decimal
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (productInput, bool) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return productInput{}, false
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return productInput{}, false
	}
	return in, true
}

func (req productRequest) toInput() (productInput, error) {
	in := productInput{
		name:            strings.TrimSpace(req.Name),
		description:     optionalText(deref(req.Description)),
		imageURL:        optionalText(deref(req.ImageURL)),
		isAvailable:     req.IsAvailable == nil || *req.IsAvailable,
		comingSoon:      req.ComingSoon,
		sortOrder:       req.SortOrder,
		expectedVersion: req.ExpectedVersion,
	}
	if in.name == "" {
		return in, errors.New("name is required")
	}

	id, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return in, errors.New("invalid category_id")
	}
	in.categoryID = id

	if req.IBU != nil {
		d, err := parseDecimal("ibu", req.IBU.String(), decimal.Zero, maxIBU)
		if err != nil {
			return in, err
		}
		in.ibu = decimalToNumeric(d)
	}
	if req.ABV != nil {
		d, err := parseDecimal("abv", req.ABV.String(), decimal.Zero, maxABV)
		if err != nil {
			return in, err
		}
		in.abv = decimalToNumeric(d)
	}

	in.harmonizations = cleanStrings(req.Harmonizations)

	seenVolume := map[string]bool{}
	for i, v := range req.PriceVariants {
		volume := strings.TrimSpace(v.Volume)
		if volume == "" {
			return in, fmt.Errorf("price_variants[%d].volume is required", i)
		}
		key := strings.ToLower(volume)
		if seenVolume[key] {
			return in, fmt.Errorf("price_variants[%d].volume %q is duplicated", i, volume)
		}
		seenVolume[key] = true

		price, err := parseDecimal(fmt.Sprintf("price_variants[%d].price", i), v.Price.String(), decimal.Zero, maxPrice)
		if err != nil {
			return in, err
		}
		if price.Exponent() < -2 {
			return in, fmt.Errorf("price_variants[%d].price must have at most 2 decimals", i)
		}
		in.variants = append(in.variants, variantInput{volume: volume, price: price})
	}
	return in, nil
}

func writeVariants(ctx context.Context, store ProductStore, productID uuid.UUID, in []variantInput) ([]database.ProductPriceVariant, error) {
	out := make([]database.ProductPriceVariant, 0, len(in))
	for pos, v := range in {
		pv, err := store.CreatePriceVariant(ctx, database.CreatePriceVariantParams{
			ProductID: productID,
			Volume:    v.volume,
			Price:     decimalToNumeric(v.price),
			Position:  int32(pos),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, pv)
	}
	return out, nil
}

func (h *ProductHandler) writeMissingOrStale(w http.ResponseWriter, r *http.Request, store ProductStore, id uuid.UUID, expected *int32) {
	current, err := store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		internalError(w, r, err, "get product")
		return
	}
	if expected != nil && *expected != current.Version {
		writeError(w, http.StatusConflict, fmt.Sprintf("stale version: product is at version %d", current.Version))
		return
	}
	writeError(w, http.StatusConflict, "product changed, please retry")
}

// variantStore is the single query variantsByProduct needs.
type variantStore interface {
	ListPriceVariantsByProducts(ctx context.Context, productIDs []uuid.UUID) ([]database.ProductPriceVariant, error)
}

func variantsByProduct(ctx context.Context, store variantStore, products []database.Product) (map[uuid.UUID][]database.ProductPriceVariant, error) {
	out := make(map[uuid.UUID][]database.ProductPriceVariant, len(products))
	if len(products) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	variants, err := store.ListPriceVariantsByProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		out[v.ProductID] = append(out[v.ProductID], v)
	}
	return out, nil
}
