package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bierserv/api/internal/database"
)

type mockStore struct {
	row      *database.SystemSetting
	getCalls int
	upserts  []database.UpsertSystemSettingsParams
	products []database.Product
	variants []database.ProductPriceVariant
	getErr   error
}

func (m *mockStore) GetSystemSettings(ctx context.Context) (database.SystemSetting, error) {
	m.getCalls++
	if m.getErr != nil {
		return database.SystemSetting{}, m.getErr
	}
	if m.row == nil {
		return database.SystemSetting{}, pgx.ErrNoRows
	}
	return *m.row, nil
}

func (m *mockStore) UpsertSystemSettings(ctx context.Context, arg database.UpsertSystemSettingsParams) (database.SystemSetting, error) {
	m.upserts = append(m.upserts, arg)
	row := database.SystemSetting{
		ID:                      1,
		BusinessName:            arg.BusinessName,
		Subtitle:                arg.Subtitle,
		LogoUrl:                 arg.LogoUrl,
		PrimaryColor:            arg.PrimaryColor,
		MenuUrl:                 arg.MenuUrl,
		ContactInfo:             arg.ContactInfo,
		ShowPricesPublic:        arg.ShowPricesPublic,
		AllowOnlineOrders:       arg.AllowOnlineOrders,
		RequireTableSelection:   arg.RequireTableSelection,
		TaxPercentage:           arg.TaxPercentage,
		ServiceFeePercentage:    arg.ServiceFeePercentage,
		CategoryRotationSeconds: arg.CategoryRotationSeconds,
		PageRotationSeconds:     arg.PageRotationSeconds,
		MenuRefreshMinutes:      arg.MenuRefreshMinutes,
		GlobalVolumeNames:       arg.GlobalVolumeNames,
		GlobalHarmonizationTags: arg.GlobalHarmonizationTags,
		GlobalPriceTemplates:    arg.GlobalPriceTemplates,
		UpdatedAt:               time.Now(),
	}
	m.row = &row
	return row, nil
}

func (m *mockStore) ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error) {
	return m.products, nil
}

func (m *mockStore) ListAllPriceVariants(ctx context.Context) ([]database.ProductPriceVariant, error) {
	return m.variants, nil
}

type mockCache struct {
	data map[string]string
	dels int
}

func (m *mockCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *mockCache) Del(ctx context.Context, keys ...string) error {
	m.dels++
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mockCache) SettingsKey() string { return "bier:settings:system" }

func num(s string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(s)
	return n
}

func storedRow() *database.SystemSetting {
	return &database.SystemSetting{
		ID:                   1,
		BusinessName:         "Bar do Zé",
		PrimaryColor:         "green",
		TaxPercentage:        num("7.50"),
		ServiceFeePercentage: num("12.00"),
		GlobalPriceTemplates: []byte(`[{"volume":"300ml","price":"9.90"}]`),
	}
}

func TestGet_DefaultsWhenMissing(t *testing.T) {
	store := &mockStore{}
	p := NewProvider(store, nil, time.Minute)

	s, err := p.Get(context.Background())
	require.NoError(t, err)

	assert.False(t, s.Persisted)
	assert.Equal(t, "BierServ", s.BusinessName)
	assert.True(t, s.Tax.ServiceFeePercentage.Equal(decimal.NewFromInt(10)))
	assert.True(t, s.Tax.TaxPercentage.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, int32(10), s.Display.CategoryRotationSeconds)
	assert.Equal(t, int32(8), s.Display.PageRotationSeconds)
	assert.Equal(t, int32(5), s.Display.MenuRefreshMinutes)
	assert.Empty(t, store.upserts, "defaults must not be written back")
}

func TestGet_StoredRow(t *testing.T) {
	store := &mockStore{row: storedRow()}
	p := NewProvider(store, nil, time.Minute)

	s, err := p.Get(context.Background())
	require.NoError(t, err)

	assert.True(t, s.Persisted)
	assert.Equal(t, "Bar do Zé", s.BusinessName)
	assert.Equal(t, "7.50", s.Tax.TaxPercentage.StringFixed(2))
	require.Len(t, s.PriceTemplates, 1)
	assert.Equal(t, "300ml", s.PriceTemplates[0].Volume)

	rates, err := p.Rates(context.Background())
	require.NoError(t, err)
	assert.True(t, rates.ServiceFeeEnabled)
	assert.Equal(t, "12.00", rates.ServiceFeePercentage.StringFixed(2))
}

func TestGet_MemoryCacheAndExpiry(t *testing.T) {
	store := &mockStore{row: storedRow()}
	p := NewProvider(store, nil, time.Minute)
	now := time.Now()
	p.now = func() time.Time { return now }

	_, _ = p.Get(context.Background())
	_, _ = p.Get(context.Background())
	assert.Equal(t, 1, store.getCalls)

	now = now.Add(2 * time.Minute)
	_, _ = p.Get(context.Background())
	assert.Equal(t, 2, store.getCalls)
}

func TestGet_RedisLevel(t *testing.T) {
	store := &mockStore{row: storedRow()}
	c := &mockCache{data: map[string]string{}}

	first := NewProvider(store, c, time.Minute)
	_, err := first.Get(context.Background())
	require.NoError(t, err)
	assert.Contains(t, c.data, "bier:settings:system")

	second := NewProvider(store, c, time.Minute)
	s, err := second.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bar do Zé", s.BusinessName)
	assert.Equal(t, 1, store.getCalls, "second provider should be served from redis")
}

func TestGet_StoreError(t *testing.T) {
	p := NewProvider(&mockStore{getErr: errors.New("boom")}, nil, time.Minute)
	_, err := p.Get(context.Background())
	assert.Error(t, err)
}

func TestSave_InvalidatesAndPersists(t *testing.T) {
	store := &mockStore{}
	c := &mockCache{data: map[string]string{"bier:settings:system": `{"business_name":"stale"}`}}
	p := NewProvider(store, c, time.Minute)

	s := Defaults()
	s.BusinessName = "Cervejaria Nova"
	s.Tax.ServiceFeePercentage = decimal.NewFromInt(8)

	saved, err := p.Save(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, saved.Persisted)
	assert.Equal(t, 1, c.dels)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, []byte("[]"), store.upserts[0].GlobalPriceTemplates)

	got, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Cervejaria Nova", got.BusinessName)
	assert.Equal(t, "8.00", got.Tax.ServiceFeePercentage.StringFixed(2))
}

func TestSyncSuggestions(t *testing.T) {
	row := storedRow()
	row.GlobalVolumeNames = []string{"300ml"}
	row.GlobalHarmonizationTags = []string{"Queijos"}
	pid := uuid.New()
	store := &mockStore{
		row: row,
		products: []database.Product{
			{ID: pid, Harmonizations: []string{"Queijos", "Carnes"}},
		},
		variants: []database.ProductPriceVariant{
			{ProductID: pid, Volume: "300ml", Price: num("12.00")},
			{ProductID: pid, Volume: "500ml", Price: num("18.00")},
		},
	}
	p := NewProvider(store, nil, time.Minute)

	s, err := p.SyncSuggestions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"300ml", "500ml"}, s.VolumeNames)
	assert.Equal(t, []string{"Queijos", "Carnes"}, s.HarmonizationTags)
	require.Len(t, s.PriceTemplates, 2)
	assert.Equal(t, "9.90", s.PriceTemplates[0].Price.StringFixed(2), "existing template wins")
	assert.Equal(t, "500ml", s.PriceTemplates[1].Volume)
}

func TestUnionTemplates_LowestCatalogPriceWins(t *testing.T) {
	a := PriceTemplate{Volume: "500ml", Price: decimal.RequireFromString("18.00")}
	b := PriceTemplate{Volume: "500ml ", Price: decimal.RequireFromString("15.50")}
	c := PriceTemplate{Volume: "300ml", Price: decimal.RequireFromString("10.00")}

	forward := unionTemplates(nil, []PriceTemplate{a, b, c})
	backward := unionTemplates(nil, []PriceTemplate{c, b, a})

	require.Len(t, forward, 2)
	assert.Equal(t, forward, backward, "row order must not matter")
	assert.Equal(t, "300ml", forward[0].Volume)
	assert.Equal(t, "500ml", forward[1].Volume)
	assert.Equal(t, "15.50", forward[1].Price.StringFixed(2))

	kept := unionTemplates([]PriceTemplate{{Volume: "500ml", Price: decimal.RequireFromString("20.00")}}, []PriceTemplate{a, b})
	require.Len(t, kept, 1)
	assert.Equal(t, "20.00", kept[0].Price.StringFixed(2), "existing template wins")
}
