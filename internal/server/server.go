package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"assistantportal/internal/config"
	"assistantportal/internal/database"
	"assistantportal/internal/domain/archive"
	"assistantportal/internal/domain/chat"
	"assistantportal/internal/domain/draft"
	"assistantportal/internal/domain/notification"
	"assistantportal/internal/domain/portal"
	"assistantportal/internal/domain/realtime"
	"assistantportal/internal/domain/sse"
	"assistantportal/internal/middleware"
	"assistantportal/internal/pkg/jwt"
)

const (
	tokenTTL     = 24 * time.Hour
	titleTimeout = 30 * time.Second
)

// Server holds the wired gateway.
type Server struct {
	Router   *gin.Engine
	Registry *portal.Registry
	Hub      *realtime.Hub
	JWT      *jwt.Service
}

// New migrates db and wires every component. rdb may be nil, in which case
// notification dedup stays in process memory.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	models := append(archive.Models(), &notification.Received{})
	if err := database.Migrate(db, models...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	jwtService := jwt.New(cfg.JWTSecret, tokenTTL)
	hub := realtime.NewHub()
	httpClient := &http.Client{}

	archiveStore := archive.NewStore(archive.NewRepository(db), hub)
	assistant := chat.NewClient(cfg.AssistantBaseURL, httpClient)
	titler := archive.NewAutoTitler(archiveStore, assistant, titleTimeout)
	normalizer := draft.NewNormalizer(cfg.CorporateDomain, cfg.Location)

	policy, err := chat.ParsePartialPolicy(cfg.PartialPolicy)
	if err != nil {
		return nil, err
	}
	chatService := chat.NewService(archiveStore, assistant, titler, normalizer, policy)

	var deduper notification.Deduper
	if rdb != nil {
		deduper = notification.NewRedisDeduper(rdb, cfg.DedupTTL)
	} else {
		deduper = notification.NewMemoryDeduper(cfg.DedupTTL)
	}
	history := notification.NewRepository(db)

	registry := portal.NewRegistry(portal.Options{
		StreamURL:  cfg.NotificationStreamURL,
		HTTPClient: httpClient,
		Backoff: sse.Backoff{
			Initial:    cfg.ReconnectInitial,
			Max:        cfg.ReconnectMax,
			Multiplier: cfg.ReconnectFactor,
			Jitter:     cfg.ReconnectJitter,
		},
		FailAfter:      cfg.ReconnectFailAfter,
		IdleTimeout:    cfg.SSEIdleTimeout,
		ToastDuration:  cfg.ToastDuration,
		GiftPopupDelay: cfg.GiftPopupDelay,
		Publisher:      hub,
		Deduper:        deduper,
		History:        history,
		Normalizer:     normalizer,
		Submitter:      draft.NewHTTPSubmitter(cfg.LeaveAPIURL, httpClient, jwt.TokenFromContext),
		OnStop:         archiveStore.Forget,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorLogger())
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	realtime.NewHandler(hub, jwtService, splitOrigins(cfg.CORSOrigins)).RegisterRoutes(v1)

	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(jwtService))
	{
		portal.NewHandler(registry).RegisterRoutes(protected)
		archive.NewHandler(archiveStore).RegisterRoutes(protected)
		chat.NewHandler(chatService, registry.Targets).RegisterRoutes(protected)
		notification.NewHandler(history).RegisterRoutes(protected)
	}

	return &Server{Router: r, Registry: registry, Hub: hub, JWT: jwtService}, nil
}

// Close ends every user session and its push channel.
func (s *Server) Close() {
	s.Registry.Shutdown()
}

func splitOrigins(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
