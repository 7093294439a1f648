package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

type Router struct {
	relay         Relay
	subscriptions Subscriptions
	maintenance   Maintenance
	billingSecret string
	now           func() time.Time
	logger        *slog.Logger
}

func NewRouter(
	relay Relay,
	subscriptions Subscriptions,
	maintenance Maintenance,
	billingSecret string,
	now func() time.Time,
	logger *slog.Logger,
) *Router {
	return &Router{
		relay:         relay,
		subscriptions: subscriptions,
		maintenance:   maintenance,
		billingSecret: billingSecret,
		now:           now,
		logger:        logger,
	}
}

// Setup builds the public engine. release selects gin's release mode.
func (r *Router) Setup(release bool) *gin.Engine {
	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(r.logger))

	engine.GET("/ping", func(c *gin.Context) {
		c.String(200, "pong")
	})

	// webhooks
	engine.POST("/incoming/:user_id", r.incoming)
	engine.POST("/email", r.email)

	// credential bearing
	engine.POST("/subscribe/:group_id", r.subscribe)
	engine.POST("/unsubscribe/:group_id", r.unsubscribe)
	engine.GET("/status", r.status)

	admin := engine.Group("/admin")
	admin.POST("/reset-callback-urls", r.resetCallbackURLs)
	admin.POST("/users/:user_id/ignore", r.requireAdmin, r.setIgnored)
	admin.POST("/users/:user_id/alt-emails", r.requireAdmin, r.addAltEmail)

	engine.POST("/billing/extend", r.extend)

	return engine
}
