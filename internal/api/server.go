// Package api exposes the floor plan, booking ledger, dashboard and
// settings operations over a small REST surface. One App bundle exists
// per restaurant namespace; the session middleware picks the bundle for
// each request.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tablemgr/internal/dashboard"
	"tablemgr/internal/events"
	"tablemgr/internal/floorplan"
	"tablemgr/internal/ledger"
	"tablemgr/internal/models"
	"tablemgr/internal/session"
	"tablemgr/internal/settings"
	"tablemgr/internal/storage"
)

// StoreFactory returns a store view bound to the given namespace prefix.
type StoreFactory func(prefix string) storage.Store

// Options wires the server.
type Options struct {
	BasePrefix          string
	CORSOrigins         []string
	RateLimit           float64
	RateBurst           int
	DefaultDuration     int
	StrictTimeConflicts bool
	RestaurantDefaults  models.RestaurantInfo
}

// App is the service bundle for one restaurant namespace.
type App struct {
	Registry  *floorplan.Registry
	Ledger    *ledger.Ledger
	Dashboard *dashboard.Aggregator
	Settings  *settings.Service
}

// Server resolves sessions to namespace-bound service bundles and serves
// the REST API over them.
type Server struct {
	opts     Options
	factory  StoreFactory
	sessions *session.Store
	logger   *zerolog.Logger
	baseCtx  context.Context

	mu   sync.Mutex
	apps map[string]*App
}

// NewServer constructs the API server. Bundles are created lazily per
// namespace and seeded on first use; ctx bounds their background refresh
// loops and should live as long as the process.
func NewServer(ctx context.Context, opts Options, factory StoreFactory, sessions *session.Store, logger *zerolog.Logger) *Server {
	if opts.BasePrefix == "" {
		opts.BasePrefix = "tableMgr_"
	}
	return &Server{
		opts:     opts,
		factory:  factory,
		sessions: sessions,
		logger:   logger,
		baseCtx:  ctx,
		apps:     make(map[string]*App),
	}
}

// AppFor returns the service bundle for a namespace prefix, building and
// seeding it on first use.
func (s *Server) AppFor(ctx context.Context, prefix string) (*App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if app, ok := s.apps[prefix]; ok {
		return app, nil
	}

	store := s.factory(prefix)
	bus := events.NewBus()
	registry := floorplan.NewRegistry(store, bus, s.opts.StrictTimeConflicts, s.logger)
	lg := ledger.NewLedger(store, registry, bus, s.opts.DefaultDuration, s.logger)
	agg := dashboard.NewAggregator(registry, lg, bus, s.logger)
	cfg := settings.NewService(store, bus, s.opts.RestaurantDefaults, s.logger)

	if err := cfg.Seed(ctx); err != nil {
		return nil, fmt.Errorf("seed namespace %s: %w", prefix, err)
	}
	if err := agg.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("prime dashboard %s: %w", prefix, err)
	}

	app := &App{Registry: registry, Ledger: lg, Dashboard: agg, Settings: cfg}
	s.apps[prefix] = app
	go agg.Start(s.baseCtx)
	s.logger.Info().Str("prefix", prefix).Msg("namespace bundle created")
	return app, nil
}

// Router builds the gin engine with CORS, rate limiting and all routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Session-Token"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(s.rateLimiter())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/login", s.login)
		api.POST("/logout", s.logout)

		auth := api.Group("")
		auth.Use(s.withSession())
		{
			auth.POST("/restaurant/select", s.selectRestaurant)

			tables := auth.Group("/tables")
			{
				tables.GET("", s.listTables)
				tables.GET("/available", s.findAvailableTables)
				tables.POST("", s.createTable)
				tables.PATCH("/:id", s.updateTable)
				tables.DELETE("/:id", s.deleteTable)
				tables.DELETE("", s.clearFloorPlan)
				tables.POST("/:id/status", s.changeTableStatus)
			}

			bookings := auth.Group("/bookings")
			{
				bookings.GET("", s.listBookings)
				bookings.GET("/upcoming", s.upcomingBookings)
				bookings.GET("/grid", s.dayGrid)
				bookings.POST("", s.createBooking)
				bookings.PUT("/:id", s.updateBooking)
				bookings.DELETE("/:id", s.deleteBooking)
			}

			auth.POST("/walkins", s.seatWalkIn)
			auth.GET("/dashboard/stats", s.dashboardStats)

			cfg := auth.Group("/settings")
			{
				cfg.GET("", s.getSettings)
				cfg.PUT("", s.saveSettings)
				cfg.GET("/export", s.exportData)
				cfg.POST("/import", s.importData)
				cfg.POST("/reset", s.resetData)
				cfg.GET("/report", s.dayReport)
			}
		}
	}
	return r
}
