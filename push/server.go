package push

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"priceguard/auth"
	"priceguard/config"
)

// Server wires the Hub to an HTTP listener: the websocket upgrade endpoint
// plus a gin access-log middleware, keeping request accounting (logrus)
// separate from the prometheus request metrics middleware.go already owns.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	access   *logrus.Logger
}

// NewServer builds a Server. cfg supplies the CORS/origin allow-list.
func NewServer(hub *Hub, cfg *config.Config) *Server {
	access := logrus.New()
	access.SetFormatter(&logrus.JSONFormatter{})

	return &Server{
		hub:    hub,
		access: access,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return cfg.IsOriginAllowed(origin)
			},
		},
	}
}

// AccessLogMiddleware is the familiar start-timer/call-Next/record shape,
// logging through logrus rather than prometheus so access logs and metrics
// stay on separate pipelines.
func (s *Server) AccessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.access.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("push fabric request")
	}
}

// RegisterRoutes mounts the websocket handshake endpoint onto an existing
// gin.Engine (main.go also mounts /metrics and /healthz on the same
// engine).
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", s.handleUpgrade)
}

// handleUpgrade performs the websocket handshake: bearer credential either
// as an auth field or an Authorization header; failure closes with a
// uniform "authentication error".
func (s *Server) handleUpgrade(c *gin.Context) {
	token := bearerToken(c.Request)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication error"})
		return
	}

	claims, err := auth.ValidateJWT(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication error"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return // Upgrade already wrote the HTTP error response
	}

	session := newSession(uuid.NewString(), claims.UserID, conn, s.hub.manager)
	s.hub.Join(session)

	go session.writePump()
	session.readPump(s.hub)
}

// bearerToken reads the credential from an Authorization header or, for
// clients that can't set headers on a websocket handshake, a `token` query
// param — the same dual path the spec's "auth field or header" language
// describes.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}
