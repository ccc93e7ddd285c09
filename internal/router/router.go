package router

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/bierserv/api/internal/cache"
	"github.com/bierserv/api/internal/config"
	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/document"
	"github.com/bierserv/api/internal/handler"
	"github.com/bierserv/api/internal/metrics"
	mw "github.com/bierserv/api/internal/middleware"
	"github.com/bierserv/api/internal/service"
	"github.com/bierserv/api/internal/settings"
	"github.com/bierserv/api/internal/storage"
	"github.com/bierserv/api/internal/ws"
)

// Deps are the long-lived resources the routes are built on.
type Deps struct {
	Config   *config.Config
	Queries  *database.Queries
	Pool     *pgxpool.Pool
	Hub      *ws.Hub
	Redis    *cache.Client // nil when Redis is disabled
	Registry *prometheus.Registry
}

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(d Deps) (chi.Router, error) {
	cfg := d.Config
	loc := cfg.App.Location()

	// Nil *cache.Client must not leak into the interfaces below as a typed nil.
	var (
		settingsCache settings.Cache
		idem          service.IdempotencyStore
		revoker       handler.TokenRevoker
	)
	if d.Redis != nil {
		settingsCache = d.Redis
		idem = d.Redis
		revoker = d.Redis
	}

	docs, err := document.NewRenderer(loc)
	if err != nil {
		return nil, fmt.Errorf("load document templates: %w", err)
	}
	pdf := document.NewChromePDF(cfg.PDF)
	if !pdf.Available() {
		log.Warn().Msg("chrome not found, pdf endpoints will answer 503")
	}
	images := storage.NewImageStore(cfg.Upload)

	httpMetrics := metrics.NewHTTPMetrics(d.Registry)
	workflowMetrics := metrics.NewWorkflowMetrics(d.Registry)

	settingsProvider := settings.NewProvider(d.Queries, settingsCache, cfg.Settings.CacheTTL)

	orderService := service.NewOrderService(
		d.Pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		d.Hub,
		workflowMetrics,
	)
	invoiceService := service.NewInvoiceService(
		d.Pool,
		d.Pool,
		func(db database.DBTX) service.InvoiceStore { return database.New(db) },
		settingsProvider,
		idem,
		d.Hub,
		workflowMetrics,
	)

	r := chi.NewRouter()

	// Standard middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.App.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger)
	r.Use(mw.Metrics(httpMetrics))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	authHandler := handler.NewAuthHandler(d.Queries, revoker, cfg.JWT)
	authHandler.RegisterRoutes(r)

	publicHandler := handler.NewPublicHandler(d.Queries, orderService, settingsProvider, d.Hub)
	r.Route("/public", func(r chi.Router) {
		publicHandler.RegisterRoutes(r)
		r.Get("/ws", tableEvents(d.Queries, d.Hub))
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/board", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWT.Secret, w, r)
	})

	uploadHandler := handler.NewUploadHandler(images, cfg.Upload.MaxBytes())
	r.Route("/uploads", func(r chi.Router) {
		r.Get("/*", http.StripPrefix("/uploads", http.FileServer(http.Dir(images.Dir()))).ServeHTTP)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWT.Secret))
			uploadHandler.RegisterRoutes(r)
		})
	})

	categoryHandler := handler.NewCategoryHandler(d.Queries)
	productHandler := handler.NewProductHandler(d.Queries, d.Pool, func(db database.DBTX) handler.ProductStore {
		return database.New(db)
	})
	tableHandler := handler.NewTableHandler(d.Queries, invoiceService, settingsProvider, d.Hub)
	orderHandler := handler.NewOrderHandler(d.Queries, orderService, docs, pdf, settingsProvider, loc)
	invoiceHandler := handler.NewInvoiceHandler(d.Queries, invoiceService, docs, pdf, settingsProvider, loc)
	reportsHandler := handler.NewReportsHandler(d.Queries, docs, pdf, settingsProvider, loc)
	serviceRequestHandler := handler.NewServiceRequestHandler(d.Queries, d.Hub)
	settingsHandler := handler.NewSettingsHandler(settingsProvider)
	userHandler := handler.NewUserHandler(d.Queries)

	manager := mw.RequireManager()
	admin := mw.RequireAdmin()

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWT.Secret))

		authHandler.RegisterMeRoutes(r)

		r.Route("/categories", func(r chi.Router) {
			categoryHandler.RegisterReadRoutes(r)
			r.With(manager).Group(categoryHandler.RegisterWriteRoutes)
		})

		r.Route("/products", func(r chi.Router) {
			productHandler.RegisterReadRoutes(r)
			r.With(manager).Group(productHandler.RegisterWriteRoutes)
		})

		r.Route("/tables", func(r chi.Router) {
			tableHandler.RegisterRoutes(r)
			r.With(manager).Group(tableHandler.RegisterManageRoutes)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(manager).Group(orderHandler.RegisterManageRoutes)
			r.With(admin).Group(orderHandler.RegisterAdminRoutes)
			orderHandler.RegisterRoutes(r)
		})

		r.Route("/invoices", func(r chi.Router) {
			invoiceHandler.RegisterRoutes(r)
			r.With(admin).Group(invoiceHandler.RegisterAdminRoutes)
		})

		r.Route("/service-requests", serviceRequestHandler.RegisterRoutes)

		r.Route("/settings", func(r chi.Router) {
			settingsHandler.RegisterReadRoutes(r)
			r.With(manager).Group(settingsHandler.RegisterWriteRoutes)
		})

		r.Route("/reports", reportsHandler.RegisterRoutes)

		// Admin-only routes
		r.With(admin).Route("/users", userHandler.RegisterRoutes)
	})

	log.Info().Msg("router initialized")
	return r, nil
}

// tableEvents subscribes a customer device to its table's topic. The table is
// identified by the QR code printed on it.
func tableEvents(queries *database.Queries, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qr := strings.TrimSpace(r.URL.Query().Get("table"))
		if qr == "" {
			http.Error(w, "missing table", http.StatusBadRequest)
			return
		}
		table, err := queries.GetTableByQRCode(r.Context(), qr)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				http.Error(w, "table not found", http.StatusNotFound)
				return
			}
			log.Error().Err(err).Msg("resolve table for websocket")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		ws.ServeTopic(hub, ws.TableTopic(table.ID), w, r)
	}
}
