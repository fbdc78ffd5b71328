package registry

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oskarlind/tradingpost/internal/version"
)

// Server exposes the store over HTTP/JSON.
type Server struct {
	store  *Store
	logger *slog.Logger
}

// NewServer creates the HTTP surface over the given store.
func NewServer(store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, logger: logger}
}

// Router builds the gin handler.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"version":  version.Version,
			"bindings": len(s.store.List()),
		})
	})

	names := r.Group("/names")
	names.GET("", s.handleList)
	names.GET("/:name", s.handleLookup)
	names.PUT("/:name", s.handleBind)
	names.DELETE("/:name", s.handleUnbind)

	return r
}

type bindRequest struct {
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bindings": s.store.List()})
}

func (s *Server) handleLookup(c *gin.Context) {
	name := c.Param("name")
	b, ok := s.store.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": "NotBound", "error": "no binding for " + name})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleBind(c *gin.Context) {
	name := c.Param("name")

	var req bindRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BadRequest", "error": "endpoint is required"})
		return
	}

	b := s.store.Bind(name, req.Endpoint)
	s.logger.Info("name bound", "name", name, "endpoint", req.Endpoint, "rebinds", b.RebindSeen)
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleUnbind(c *gin.Context) {
	name := c.Param("name")
	if !s.store.Unbind(name) {
		c.JSON(http.StatusNotFound, gin.H{"code": "NotBound", "error": "no binding for " + name})
		return
	}
	s.logger.Info("name unbound", "name", name)
	c.Status(http.StatusNoContent)
}
