package http

import (
	"time"

	"rewards_app/internal/http/handlers"
	"rewards_app/internal/http/middleware"
	"rewards_app/internal/ws"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the API surface. Balance-affecting endpoints sit
// behind auth; registration and referral processing do not, since they run
// before the caller has a token.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, hub *ws.Hub, version string, rateLimit int, rateWindow time.Duration) {
	healthHandler := handlers.NewHealthHandler(version)

	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(rateLimit, rateWindow))

	v1.POST("/auth/register", h.Register)
	v1.POST("/auth/token", h.Token)
	v1.POST("/referrals/process", h.ProcessReferral)

	authed := v1.Group("")
	authed.Use(middleware.AuthRequired())

	authed.GET("/wallet", h.Wallet)
	authed.GET("/wallet/transactions", h.Transactions)
	authed.GET("/wallet/earnings/today", h.TodayEarnings)

	authed.POST("/earn/checkin", h.Checkin)
	authed.POST("/earn/watch", h.WatchAd)
	authed.POST("/earn/daily-bonus", h.DailyBonus)

	authed.GET("/spin", h.SpinStatus)
	authed.POST("/spin", h.SpinStart)
	authed.POST("/spin/claim", h.SpinClaim)

	authed.GET("/referrals", h.ReferralInfo)

	// Live balance/history pushes; token is validated in the ws handler.
	r.GET("/ws", ws.Serve(hub))
}
