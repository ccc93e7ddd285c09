// Package settings serves the system settings singleton with defaults and a
// two-level cache (in-process, then Redis).
package settings

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bierserv/api/internal/billing"
	"github.com/bierserv/api/internal/database"
)

// Settings is the merged view of the settings row and its defaults.
type Settings struct {
	BusinessName      string             `json:"business_name"`
	Subtitle          string             `json:"business_subtitle"`
	LogoURL           string             `json:"logo_url"`
	PrimaryColor      string             `json:"primary_color"`
	MenuURL           string             `json:"menu_url"`
	ContactInfo       string             `json:"contact_info"`
	Features          Features           `json:"features"`
	Tax               TaxSettings        `json:"tax_settings"`
	Display           DisplayPreferences `json:"display_preferences"`
	VolumeNames       []string           `json:"global_volume_names"`
	HarmonizationTags []string           `json:"global_harmonization_tags"`
	PriceTemplates    []PriceTemplate    `json:"global_price_templates"`

	// Persisted is false while the defaults are being served.
	Persisted bool       `json:"persisted"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type Features struct {
	ShowPricesPublic      bool `json:"show_prices_public"`
	AllowOnlineOrders     bool `json:"allow_online_orders"`
	RequireTableSelection bool `json:"require_table_selection"`
}

type TaxSettings struct {
	TaxPercentage        decimal.Decimal `json:"tax_percentage"`
	ServiceFeePercentage decimal.Decimal `json:"service_fee_percentage"`
}

type DisplayPreferences struct {
	CategoryRotationSeconds int32 `json:"category_rotation_seconds"`
	PageRotationSeconds     int32 `json:"page_rotation_seconds"`
	MenuRefreshMinutes      int32 `json:"menu_refresh_minutes"`
}

// PriceTemplate is a suggested {volume, price} pair for new products.
type PriceTemplate struct {
	Volume string          `json:"volume"`
	Price  decimal.Decimal `json:"price"`
}

// Defaults is what the API serves before the first save.
func Defaults() Settings {
	return Settings{
		BusinessName: "BierServ",
		Subtitle:     "Cervejaria Digital",
		PrimaryColor: "amber",
		Features: Features{
			ShowPricesPublic:      true,
			AllowOnlineOrders:     false,
			RequireTableSelection: true,
		},
		Tax: TaxSettings{
			TaxPercentage:        billing.DefaultTaxPercentage,
			ServiceFeePercentage: billing.DefaultServiceFeePercentage,
		},
		Display: DisplayPreferences{
			CategoryRotationSeconds: 10,
			PageRotationSeconds:     8,
			MenuRefreshMinutes:      5,
		},
		VolumeNames:       []string{},
		HarmonizationTags: []string{},
		PriceTemplates:    []PriceTemplate{},
	}
}

// Rates returns the fee rates with the service fee enabled.
func (s Settings) Rates() billing.FeeRates {
	return billing.FeeRates{
		ServiceFeePercentage: s.Tax.ServiceFeePercentage,
		TaxPercentage:        s.Tax.TaxPercentage,
		ServiceFeeEnabled:    true,
	}
}

func fromRow(row database.SystemSetting) (Settings, error) {
	s := Settings{
		BusinessName: row.BusinessName,
		Subtitle:     row.Subtitle,
		LogoURL:      row.LogoUrl,
		PrimaryColor: row.PrimaryColor,
		MenuURL:      row.MenuUrl,
		ContactInfo:  row.ContactInfo,
		Features: Features{
			ShowPricesPublic:      row.ShowPricesPublic,
			AllowOnlineOrders:     row.AllowOnlineOrders,
			RequireTableSelection: row.RequireTableSelection,
		},
		Tax: TaxSettings{
			TaxPercentage:        numericOr(row.TaxPercentage, billing.DefaultTaxPercentage),
			ServiceFeePercentage: numericOr(row.ServiceFeePercentage, billing.DefaultServiceFeePercentage),
		},
		Display: DisplayPreferences{
			CategoryRotationSeconds: row.CategoryRotationSeconds,
			PageRotationSeconds:     row.PageRotationSeconds,
			MenuRefreshMinutes:      row.MenuRefreshMinutes,
		},
		VolumeNames:       nonNil(row.GlobalVolumeNames),
		HarmonizationTags: nonNil(row.GlobalHarmonizationTags),
		PriceTemplates:    []PriceTemplate{},
		Persisted:         true,
	}
	if !row.UpdatedAt.IsZero() {
		t := row.UpdatedAt
		s.UpdatedAt = &t
	}
	if len(row.GlobalPriceTemplates) > 0 {
		if err := json.Unmarshal(row.GlobalPriceTemplates, &s.PriceTemplates); err != nil {
			return Settings{}, fmt.Errorf("decode global_price_templates: %w", err)
		}
	}
	return s, nil
}

func toParams(s Settings) (database.UpsertSystemSettingsParams, error) {
	templates := s.PriceTemplates
	if templates == nil {
		templates = []PriceTemplate{}
	}
	raw, err := json.Marshal(templates)
	if err != nil {
		return database.UpsertSystemSettingsParams{}, fmt.Errorf("encode global_price_templates: %w", err)
	}
	return database.UpsertSystemSettingsParams{
		BusinessName:            s.BusinessName,
		Subtitle:                s.Subtitle,
		LogoUrl:                 s.LogoURL,
		PrimaryColor:            s.PrimaryColor,
		MenuUrl:                 s.MenuURL,
		ContactInfo:             s.ContactInfo,
		ShowPricesPublic:        s.Features.ShowPricesPublic,
		AllowOnlineOrders:       s.Features.AllowOnlineOrders,
		RequireTableSelection:   s.Features.RequireTableSelection,
		TaxPercentage:           decimalToNumeric(s.Tax.TaxPercentage),
		ServiceFeePercentage:    decimalToNumeric(s.Tax.ServiceFeePercentage),
		CategoryRotationSeconds: s.Display.CategoryRotationSeconds,
		PageRotationSeconds:     s.Display.PageRotationSeconds,
		MenuRefreshMinutes:      s.Display.MenuRefreshMinutes,
		GlobalVolumeNames:       nonNil(s.VolumeNames),
		GlobalHarmonizationTags: nonNil(s.HarmonizationTags),
		GlobalPriceTemplates:    raw,
	}, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func numericOr(n pgtype.Numeric, fallback decimal.Decimal) decimal.Decimal {
	if !n.Valid {
		return fallback
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return fallback
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return fallback
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
