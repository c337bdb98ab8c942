package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"uptime-report-backend/config"
	"uptime-report-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, importer Importer, reports Reports) (*gin.Engine, error) {
	r := gin.Default()
	// Forwarding headers are only believed from the listed proxies, so a
	// direct client cannot pick its own rate limit key.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	if cfg.RequestIPHeader != "" {
		r.RemoteIPHeaders = []string{cfg.RequestIPHeader}
	}

	handler := NewHandler(importer, reports)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	// Clients poll a report repeatedly until it is ready, so polling gets
	// its own, looser budget.
	pollLimiter := mw.RateLimiter(rate.Limit(cfg.PollRateLimitPerSec), cfg.PollRateLimitBurst)

	// Ready payloads never change, so they can be held for the whole TTL.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/import_data", rateLimiter, handler.ImportData)
	r.POST("/trigger_report", rateLimiter, handler.TriggerReport)
	// Cache hits are served before the limiter is consulted.
	r.GET("/get_report/:report_id", caching, pollLimiter, handler.GetReport)

	return r, nil
}
