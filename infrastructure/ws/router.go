package ws

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/services"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter exposes the websocket endpoint and the online-set pull.
// Both sit behind the identity check, so a bad credential is answered with 401 before any upgrade.
func SetupRouter(log *slog.Logger, mode string, verifier contract.IdentityVerifier, chat services.IChatService, cfg Config) *gin.Engine {
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == gin.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	handler := NewHandler(log, chat, cfg)
	authenticated := r.Group("/", auth.Authenticate(verifier))
	authenticated.GET("/ws", handler.Serve)
	authenticated.GET("/api/online", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"users": chat.OnlineUsers()})
	})

	log.Info("Router setup", "routes", len(r.Routes()))
	return r
}
