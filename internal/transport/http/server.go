package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/buddychat/buddychat-server/internal/auth"
	"github.com/buddychat/buddychat-server/internal/config"
	"github.com/buddychat/buddychat-server/internal/core"
	"github.com/buddychat/buddychat-server/internal/service/buddies"
	"github.com/buddychat/buddychat-server/internal/store"
)

// NewServer builds the HTTP server: REST API, health check and the
// WebSocket endpoint.
func NewServer(hub *core.Hub, authService *auth.Service, buddyService *buddies.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, cfg.LoginRateLimit, logger)
	userHandlers := NewUserHandlers(st, hub, logger)
	buddyHandlers := NewBuddyHandlers(buddyService, st, hub, logger)
	historyHandlers := NewHistoryHandlers(st, cfg.HistoryPageSize, logger)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)

		authed := api.Group("")
		authed.Use(AuthMiddleware(authService, logger))
		{
			authed.GET("/users/search", userHandlers.SearchUsers)
			authed.GET("/users/:id/presence", userHandlers.GetPresence)

			authed.GET("/buddies", buddyHandlers.List)
			authed.POST("/buddies", buddyHandlers.Add)
			authed.PATCH("/buddies/:id", buddyHandlers.Update)
			authed.DELETE("/buddies/:id", buddyHandlers.Remove)

			authed.GET("/conversations/:userID/messages", historyHandlers.GetConversation)
		}
	}

	// The WebSocket endpoint authenticates on its own since browsers
	// cannot send headers on the dial.
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger)))

	srv := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	stop := make(chan struct{})
	apiHandlers.StartRateLimiter(stop)
	srv.RegisterOnShutdown(func() { close(stop) })

	return srv
}

func healthHandler(c *gin.Context) {
	fmt.Fprint(c.Writer, "ok")
}
