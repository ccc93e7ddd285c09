package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bierserv/api/internal/billing"
	"github.com/bierserv/api/internal/cache"
	"github.com/bierserv/api/internal/database"
)

// Store is the persistence the provider needs.
// Satisfied by *database.Queries; narrow interface for testability.
type Store interface {
	GetSystemSettings(ctx context.Context) (database.SystemSetting, error)
	UpsertSystemSettings(ctx context.Context, arg database.UpsertSystemSettingsParams) (database.SystemSetting, error)
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	ListAllPriceVariants(ctx context.Context) ([]database.ProductPriceVariant, error)
}

// Cache is the shared second-level cache. Satisfied by *cache.Client.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SettingsKey() string
}

// Provider hands out the current settings. Reads hit memory first, then Redis
// (when configured), then Postgres. Save and SyncSuggestions invalidate both
// cache levels.
type Provider struct {
	store Store
	cache Cache
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	cached   *Settings
	cachedAt time.Time
}

// NewProvider creates a Provider. cache may be nil.
func NewProvider(store Store, c Cache, ttl time.Duration) *Provider {
	return &Provider{store: store, cache: c, ttl: ttl, now: time.Now}
}

// Get returns the stored settings or the defaults when none were saved yet.
// The defaults are never written back.
func (p *Provider) Get(ctx context.Context) (Settings, error) {
	if s, ok := p.fromMemory(); ok {
		return s, nil
	}
	if s, ok := p.fromRedis(ctx); ok {
		p.remember(s)
		return s, nil
	}

	row, err := p.store.GetSystemSettings(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s := Defaults()
			p.remember(s)
			return s, nil
		}
		return Settings{}, fmt.Errorf("get system settings: %w", err)
	}
	s, err := fromRow(row)
	if err != nil {
		return Settings{}, err
	}
	p.remember(s)
	p.toRedis(ctx, s)
	return s, nil
}

// Rates returns the fee rates of the current settings.
func (p *Provider) Rates(ctx context.Context) (billing.FeeRates, error) {
	s, err := p.Get(ctx)
	if err != nil {
		return billing.FeeRates{}, err
	}
	return s.Rates(), nil
}

// Save persists s and makes it visible to every subsequent Get.
func (p *Provider) Save(ctx context.Context, s Settings) (Settings, error) {
	params, err := toParams(s)
	if err != nil {
		return Settings{}, err
	}
	row, err := p.store.UpsertSystemSettings(ctx, params)
	if err != nil {
		return Settings{}, fmt.Errorf("upsert system settings: %w", err)
	}
	saved, err := fromRow(row)
	if err != nil {
		return Settings{}, err
	}
	p.Invalidate(ctx)
	p.remember(saved)
	return saved, nil
}

// SyncSuggestions unions the volume names, harmonization tags and price
// templates found in the catalog into the global suggestion lists and saves.
func (p *Provider) SyncSuggestions(ctx context.Context) (Settings, error) {
	current, err := p.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	products, err := p.store.ListProducts(ctx, database.ListProductsParams{})
	if err != nil {
		return Settings{}, fmt.Errorf("list products: %w", err)
	}
	variants, err := p.store.ListAllPriceVariants(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("list price variants: %w", err)
	}

	var tags []string
	for _, prod := range products {
		tags = append(tags, prod.Harmonizations...)
	}
	var volumes []string
	var templates []PriceTemplate
	for _, v := range variants {
		volumes = append(volumes, v.Volume)
		templates = append(templates, PriceTemplate{Volume: v.Volume, Price: numericOr(v.Price, decimal.Zero)})
	}

	current.VolumeNames = unionStrings(current.VolumeNames, volumes)
	current.HarmonizationTags = unionStrings(current.HarmonizationTags, tags)
	current.PriceTemplates = unionTemplates(current.PriceTemplates, templates)
	return p.Save(ctx, current)
}

// Invalidate drops both cache levels.
func (p *Provider) Invalidate(ctx context.Context) {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
	if p.cache != nil {
		if err := p.cache.Del(ctx, p.cache.SettingsKey()); err != nil {
			log.Warn().Err(err).Msg("settings: redis invalidate failed")
		}
	}
}

func (p *Provider) fromMemory() (Settings, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cached == nil || p.now().Sub(p.cachedAt) >= p.ttl {
		return Settings{}, false
	}
	return *p.cached, true
}

func (p *Provider) remember(s Settings) {
	if p.ttl <= 0 {
		return
	}
	p.mu.Lock()
	p.cached = &s
	p.cachedAt = p.now()
	p.mu.Unlock()
}

func (p *Provider) fromRedis(ctx context.Context) (Settings, bool) {
	if p.cache == nil {
		return Settings{}, false
	}
	raw, err := p.cache.Get(ctx, p.cache.SettingsKey())
	if err != nil {
		if !cache.IsMiss(err) {
			log.Warn().Err(err).Msg("settings: redis read failed")
		}
		return Settings{}, false
	}
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		log.Warn().Err(err).Msg("settings: discarding malformed cache entry")
		return Settings{}, false
	}
	return s, true
}

// toRedis only caches persisted rows; defaults stay process-local.
func (p *Provider) toRedis(ctx context.Context, s Settings) {
	if p.cache == nil || !s.Persisted || p.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, p.cache.SettingsKey(), raw, p.ttl); err != nil {
		log.Warn().Err(err).Msg("settings: redis write failed")
	}
}

func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, v := range append(append([]string{}, base...), extra...) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// unionTemplates keeps one template per volume, sorted by volume label. An
// existing template wins; among catalog variants sharing a label the lowest
// price wins, so the result does not depend on row order.
func unionTemplates(base, extra []PriceTemplate) []PriceTemplate {
	byVolume := make(map[string]PriceTemplate, len(base)+len(extra))
	for _, t := range extra {
		t.Volume = strings.TrimSpace(t.Volume)
		if t.Volume == "" {
			continue
		}
		if seen, ok := byVolume[t.Volume]; ok && seen.Price.LessThanOrEqual(t.Price) {
			continue
		}
		byVolume[t.Volume] = t
	}
	for _, t := range base {
		t.Volume = strings.TrimSpace(t.Volume)
		if t.Volume == "" {
			continue
		}
		byVolume[t.Volume] = t
	}
	out := make([]PriceTemplate, 0, len(byVolume))
	for _, t := range byVolume {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Volume < out[j].Volume })
	return out
}
