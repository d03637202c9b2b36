package routes

import (
	"net/http"
	"net/http/pprof"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/domain/events"
	"github.com/swipedeck/swipedeck/internal/app/domain/feed"
	"github.com/swipedeck/swipedeck/internal/app/domain/ledger"
	"github.com/swipedeck/swipedeck/internal/app/domain/recommend"
	"github.com/swipedeck/swipedeck/internal/pkg/cache"
	"github.com/swipedeck/swipedeck/internal/pkg/config"
)

type AppHandlers struct {
	Feed   *feed.Handler
	Ledger *ledger.Handler
}

func Setup(r *gin.Engine, cfg *config.Config, dbPool *pgxpool.Pool, log *zap.Logger) {
	handlers := setupDependencies(cfg, dbPool, log)
	setupRouter(r, handlers, log)
}

func setupDependencies(cfg *config.Config, dbPool *pgxpool.Pool, log *zap.Logger) *AppHandlers {
	eventsRepo := events.NewRepository(dbPool, log)
	poolRepo := recommend.NewRepository(dbPool, log)
	ledgerRepo := ledger.NewRepository(dbPool, log)

	locks := recommend.NewUserLocks()
	trigger := recommend.NewHTTPTrigger(cfg.Recommender, poolRepo, locks, log)
	locationCounts := cache.NewLocationCounts(log)

	feedService := feed.NewService(eventsRepo, poolRepo, locks, trigger, locationCounts, log)
	ledgerService := ledger.NewService(ledgerRepo, log)

	return &AppHandlers{
		Feed:   feed.NewHandler(feedService, cfg.Production, log),
		Ledger: ledger.NewHandler(ledgerService, eventsRepo, log),
	}
}

func setupRouter(r *gin.Engine, h *AppHandlers, log *zap.Logger) {
	// Pprof debugging routes
	debugGroup := r.Group("/debug/pprof")
	{
		debugGroup.GET("/", gin.WrapH(http.HandlerFunc(pprof.Index)))
		debugGroup.GET("/cmdline", gin.WrapH(http.HandlerFunc(pprof.Cmdline)))
		debugGroup.GET("/profile", gin.WrapH(http.HandlerFunc(pprof.Profile)))
		debugGroup.POST("/symbol", gin.WrapH(http.HandlerFunc(pprof.Symbol)))
		debugGroup.GET("/symbol", gin.WrapH(http.HandlerFunc(pprof.Symbol)))
		debugGroup.GET("/trace", gin.WrapH(http.HandlerFunc(pprof.Trace)))
		debugGroup.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
		debugGroup.GET("/block", gin.WrapH(pprof.Handler("block")))
		debugGroup.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		debugGroup.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		debugGroup.GET("/mutex", gin.WrapH(pprof.Handler("mutex")))
		debugGroup.GET("/threadcreate", gin.WrapH(pprof.Handler("threadcreate")))
	}

	api := r.Group("/api")
	{
		eventsGroup := api.Group("/events")
		{
			eventsGroup.GET("/batch", h.Feed.Batch)
			eventsGroup.GET("/random", h.Feed.Random)
			eventsGroup.GET("/unread-count", h.Feed.UnreadCount)

			eventsGroup.POST("/save", h.Ledger.Save)
			eventsGroup.POST("/archive", h.Ledger.Archive)
			eventsGroup.POST("/share", h.Ledger.Share)
			eventsGroup.POST("/opened", h.Ledger.Opened)
			eventsGroup.POST("/attending/:id", h.Ledger.Attending)

			eventsGroup.GET("/saved", h.Ledger.Saved)
			eventsGroup.GET("/archived", h.Ledger.Archived)
			eventsGroup.GET("/history", h.Ledger.History)
		}

		eventGroup := api.Group("/event")
		{
			eventGroup.GET("/:id", h.Feed.GetEvent)
			eventGroup.POST("/:id/unsave", h.Ledger.Unsave)
		}
	}

	// 404 handler - must be last
	r.NoRoute(func(c *gin.Context) {
		log.Info("404 - Not found",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.String("ip", c.ClientIP()),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
