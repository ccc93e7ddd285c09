package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const systemSettingColumns = `id, business_name, subtitle, logo_url, primary_color, menu_url, contact_info,
    show_prices_public, allow_online_orders, require_table_selection, tax_percentage,
    service_fee_percentage, category_rotation_seconds, page_rotation_seconds, menu_refresh_minutes,
    global_volume_names, global_harmonization_tags, global_price_templates, updated_at`

func scanSystemSetting(row interface{ Scan(...any) error }) (SystemSetting, error) {
	var i SystemSetting
	err := row.Scan(
		&i.ID,
		&i.BusinessName,
		&i.Subtitle,
		&i.LogoUrl,
		&i.PrimaryColor,
		&i.MenuUrl,
		&i.ContactInfo,
		&i.ShowPricesPublic,
		&i.AllowOnlineOrders,
		&i.RequireTableSelection,
		&i.TaxPercentage,
		&i.ServiceFeePercentage,
		&i.CategoryRotationSeconds,
		&i.PageRotationSeconds,
		&i.MenuRefreshMinutes,
		&i.GlobalVolumeNames,
		&i.GlobalHarmonizationTags,
		&i.GlobalPriceTemplates,
		&i.UpdatedAt,
	)
	return i, err
}

const getSystemSettings = `-- name: GetSystemSettings :one
SELECT ` + systemSettingColumns + ` FROM system_settings WHERE id = 1`

func (q *Queries) GetSystemSettings(ctx context.Context) (SystemSetting, error) {
	row := q.db.QueryRow(ctx, getSystemSettings)
	return scanSystemSetting(row)
}

const upsertSystemSettings = `-- name: UpsertSystemSettings :one
INSERT INTO system_settings (
    id, business_name, subtitle, logo_url, primary_color, menu_url, contact_info,
    show_prices_public, allow_online_orders, require_table_selection, tax_percentage,
    service_fee_percentage, category_rotation_seconds, page_rotation_seconds, menu_refresh_minutes,
    global_volume_names, global_harmonization_tags, global_price_templates
) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (id) DO UPDATE SET
    business_name = EXCLUDED.business_name,
    subtitle = EXCLUDED.subtitle,
    logo_url = EXCLUDED.logo_url,
    primary_color = EXCLUDED.primary_color,
    menu_url = EXCLUDED.menu_url,
    contact_info = EXCLUDED.contact_info,
    show_prices_public = EXCLUDED.show_prices_public,
    allow_online_orders = EXCLUDED.allow_online_orders,
    require_table_selection = EXCLUDED.require_table_selection,
    tax_percentage = EXCLUDED.tax_percentage,
    service_fee_percentage = EXCLUDED.service_fee_percentage,
    category_rotation_seconds = EXCLUDED.category_rotation_seconds,
    page_rotation_seconds = EXCLUDED.page_rotation_seconds,
    menu_refresh_minutes = EXCLUDED.menu_refresh_minutes,
    global_volume_names = EXCLUDED.global_volume_names,
    global_harmonization_tags = EXCLUDED.global_harmonization_tags,
    global_price_templates = EXCLUDED.global_price_templates,
    updated_at = now()
RETURNING ` + systemSettingColumns

type UpsertSystemSettingsParams struct {
	BusinessName            string         `json:"business_name"`
	Subtitle                string         `json:"subtitle"`
	LogoUrl                 string         `json:"logo_url"`
	PrimaryColor            string         `json:"primary_color"`
	MenuUrl                 string         `json:"menu_url"`
	ContactInfo             string         `json:"contact_info"`
	ShowPricesPublic        bool           `json:"show_prices_public"`
	AllowOnlineOrders       bool           `json:"allow_online_orders"`
	RequireTableSelection   bool           `json:"require_table_selection"`
	TaxPercentage           pgtype.Numeric `json:"tax_percentage"`
	ServiceFeePercentage    pgtype.Numeric `json:"service_fee_percentage"`
	CategoryRotationSeconds int32          `json:"category_rotation_seconds"`
	PageRotationSeconds     int32          `json:"page_rotation_seconds"`
	MenuRefreshMinutes      int32          `json:"menu_refresh_minutes"`
	GlobalVolumeNames       []string       `json:"global_volume_names"`
	GlobalHarmonizationTags []string       `json:"global_harmonization_tags"`
	GlobalPriceTemplates    []byte         `json:"global_price_templates"`
}

func (q *Queries) UpsertSystemSettings(ctx context.Context, arg UpsertSystemSettingsParams) (SystemSetting, error) {
	row := q.db.QueryRow(ctx, upsertSystemSettings,
		arg.BusinessName,
		arg.Subtitle,
		arg.LogoUrl,
		arg.PrimaryColor,
		arg.MenuUrl,
		arg.ContactInfo,
		arg.ShowPricesPublic,
		arg.AllowOnlineOrders,
		arg.RequireTableSelection,
		arg.TaxPercentage,
		arg.ServiceFeePercentage,
		arg.CategoryRotationSeconds,
		arg.PageRotationSeconds,
		arg.MenuRefreshMinutes,
		arg.GlobalVolumeNames,
		arg.GlobalHarmonizationTags,
		arg.GlobalPriceTemplates,
	)
	return scanSystemSetting(row)
}
