// Package api is the gin HTTP surface of the check-in service.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/realtime"
	"qrattend/internal/secret"
)

// Issuer hands out the current credential and rotates it on demand.
type Issuer interface {
	Latest(ctx context.Context) (secret.Issued, error)
	Rotate(ctx context.Context) (secret.Issued, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Service   *attendance.Service
	Issuer    Issuer
	Store     Pinger
	WebSocket *realtime.Handler
	Gatherer  prometheus.Gatherer
	Log       *zap.Logger

	// Limiter guards check-ins. Built from RateLimitPerMin when nil.
	Limiter *httpmiddleware.TokenBucket

	JWTSigningKey   string
	JWTIssuer       string
	RateLimitPerMin int
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(d Deps) *gin.Engine {
	h := &handlers{svc: d.Service, issuer: d.Issuer, store: d.Store, log: d.Log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLog(d.Log, "/healthz", "/metrics", "/ws"))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", h.health)
	if d.WebSocket != nil {
		r.GET("/ws", d.WebSocket.Serve)
	}

	authed := r.Group("/", auth.Bearer(d.JWTSigningKey, d.JWTIssuer))
	admin := authed.Group("/", auth.RequireRole(auth.RoleAdmin))

	limiter := d.Limiter
	if limiter == nil {
		limiter = httpmiddleware.NewTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin)
	}
	authed.POST("/attendance/new", limiter.Middleware(), h.checkIn)
	authed.POST("/absence/:id/set", h.fileAbsence)
	authed.POST("/messages", h.postMessage)

	admin.GET("/attendance/get/qr", h.currentQR)
	admin.GET("/attendance/refresh/qr", h.refreshQR)
	admin.GET("/attendance/reset/qr", h.reset)
	admin.GET("/attendance/get/all", h.records)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
