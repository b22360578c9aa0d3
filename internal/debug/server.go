// Package debug exposes the daemon's local admin surface: health, metrics,
// and a read-only view of the synchronized state.
package debug

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-sync/internal/observability"
	"chat-sync/internal/session"
	"chat-sync/internal/store"
)

// NewRouter builds the admin router. sess may be nil in tests that only need
// the store routes.
func NewRouter(st *store.Store, sess *session.Session) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-sync"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/state/conversations", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"conversations": st.Conversations()})
	})
	router.GET("/state/conversations/:conversation_id/messages", func(c *gin.Context) {
		id := c.Param("conversation_id")
		if _, ok := st.Conversation(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown conversation"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": st.Messages(id)})
	})

	if sess != nil {
		router.GET("/state/view", func(c *gin.Context) {
			v := sess.View()
			resp := gin.H{
				"active_id":     v.ActiveID,
				"loading":       v.Loading,
				"conversations": v.Conversations,
				"messages":      v.Messages,
			}
			if v.Err != nil {
				resp["error"] = v.Err.Error()
			}
			c.JSON(http.StatusOK, resp)
		})
		router.GET("/stats", func(c *gin.Context) {
			stats, err := sess.Stats(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load stats"})
				return
			}
			c.JSON(http.StatusOK, stats)
		})
	}

	return router
}
