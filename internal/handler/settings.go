package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/bierserv/api/internal/settings"
)

var maxPercentage = decimal.NewFromInt(100)

// SettingsService reads and writes the settings singleton.
// Satisfied by *settings.Provider.
type SettingsService interface {
	Get(ctx context.Context) (settings.Settings, error)
	Save(ctx context.Context, s settings.Settings) (settings.Settings, error)
	SyncSuggestions(ctx context.Context) (settings.Settings, error)
}

// SettingsHandler handles settings endpoints.
type SettingsHandler struct {
	svc SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(svc SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// RegisterReadRoutes registers the staff endpoints at /settings.
func (h *SettingsHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.Get)
}

// RegisterWriteRoutes registers the manager endpoints at /settings.
func (h *SettingsHandler) RegisterWriteRoutes(r chi.Router) {
	r.Put("/", h.Update)
	r.Post("/suggestions/sync", h.SyncSuggestions)
}

// --- Request types ---

type featuresRequest struct {
	ShowPricesPublic      bool `json:"show_prices_public"`
	AllowOnlineOrders     bool `json:"allow_online_orders"`
	RequireTableSelection bool `json:"require_table_selection"`
}

type taxSettingsRequest struct {
	TaxPercentage        json.Number `json:"tax_percentage" validate:"required"`
	ServiceFeePercentage json.Number `json:"service_fee_percentage" validate:"required"`
}

type displayRequest struct {
	CategoryRotationSeconds int32 `json:"category_rotation_seconds" validate:"min=1,max=3600"`
	PageRotationSeconds     int32 `json:"page_rotation_seconds" validate:"min=1,max=3600"`
	MenuRefreshMinutes      int32 `json:"menu_refresh_minutes" validate:"min=1,max=1440"`
}

type priceTemplateRequest struct {
	Volume string      `json:"volume" validate:"required,max=40"`
	Price  json.Number `json:"price" validate:"required"`
}

type settingsRequest struct {
	BusinessName      string                 `json:"business_name" validate:"required,max=120"`
	Subtitle          string                 `json:"business_subtitle" validate:"max=200"`
	LogoURL           string                 `json:"logo_url" validate:"max=500"`
	PrimaryColor      string                 `json:"primary_color" validate:"max=32"`
	MenuURL           string                 `json:"menu_url" validate:"omitempty,url,max=500"`
	ContactInfo       string                 `json:"contact_info" validate:"max=500"`
	Features          featuresRequest        `json:"features"`
	Tax               taxSettingsRequest     `json:"tax_settings"`
	Display           displayRequest         `json:"display_preferences"`
	VolumeNames       []string               `json:"global_volume_names" validate:"max=100,dive,max=40"`
	HarmonizationTags []string               `json:"global_harmonization_tags" validate:"max=200,dive,max=60"`
	PriceTemplates    []priceTemplateRequest `json:"global_price_templates" validate:"max=100,dive"`
}

func (req settingsRequest) toSettings() (settings.Settings, error) {
	s := settings.Settings{
		BusinessName: strings.TrimSpace(req.BusinessName),
		Subtitle:     strings.TrimSpace(req.Subtitle),
		LogoURL:      strings.TrimSpace(req.LogoURL),
		PrimaryColor: strings.TrimSpace(req.PrimaryColor),
		MenuURL:      strings.TrimSpace(req.MenuURL),
		ContactInfo:  strings.TrimSpace(req.ContactInfo),
		Features: settings.Features{
			ShowPricesPublic:      req.Features.ShowPricesPublic,
			AllowOnlineOrders:     req.Features.AllowOnlineOrders,
			RequireTableSelection: req.Features.RequireTableSelection,
		},
		Display: settings.DisplayPreferences{
			CategoryRotationSeconds: req.Display.CategoryRotationSeconds,
			PageRotationSeconds:     req.Display.PageRotationSeconds,
			MenuRefreshMinutes:      req.Display.MenuRefreshMinutes,
		},
		VolumeNames:       cleanStrings(req.VolumeNames),
		HarmonizationTags: cleanStrings(req.HarmonizationTags),
		PriceTemplates:    make([]settings.PriceTemplate, 0, len(req.PriceTemplates)),
	}
	if s.BusinessName == "" {
		return s, fmt.Errorf("business_name is required")
	}

	var err error
	s.Tax.TaxPercentage, err = parseDecimal("tax_settings.tax_percentage", req.Tax.TaxPercentage.String(), decimal.Zero, maxPercentage)
	if err != nil {
		return s, err
	}
	s.Tax.ServiceFeePercentage, err = parseDecimal("tax_settings.service_fee_percentage", req.Tax.ServiceFeePercentage.String(), decimal.Zero, maxPercentage)
	if err != nil {
		return s, err
	}

	for i, t := range req.PriceTemplates {
		price, err := parseDecimal(fmt.Sprintf("global_price_templates[%d].price", i), t.Price.String(), decimal.Zero, maxPrice)
		if err != nil {
			return s, err
		}
		s.PriceTemplates = append(s.PriceTemplates, settings.PriceTemplate{
			Volume: strings.TrimSpace(t.Volume),
			Price:  price,
		})
	}
	return s, nil
}

// --- Handlers ---

// Get returns the current settings, or the defaults when none were saved.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context())
	if err != nil {
		internalError(w, r, err, "get settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Update replaces the settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := req.toSettings()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.svc.Save(r.Context(), s)
	if err != nil {
		internalError(w, r, err, "save settings")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// SyncSuggestions merges the catalog's volumes, tags and prices into the
// global suggestion lists.
func (h *SettingsHandler) SyncSuggestions(w http.ResponseWriter, r *http.Request) {
	saved, err := h.svc.SyncSuggestions(r.Context())
	if err != nil {
		internalError(w, r, err, "sync settings suggestions")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// --- Helpers ---

// cleanStrings trims, drops blanks and removes case-insensitive duplicates.
func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
