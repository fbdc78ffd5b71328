// Package server exposes the market engine over HTTP/JSON, plus the
// WebSocket endpoint where registered traders attach their callback
// sinks.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oskarlind/tradingpost/internal/bank"
	"github.com/oskarlind/tradingpost/internal/hub"
	"github.com/oskarlind/tradingpost/internal/market"
	"github.com/oskarlind/tradingpost/internal/model"
	"github.com/oskarlind/tradingpost/internal/notify"
	"github.com/oskarlind/tradingpost/internal/version"
)

// Server wires the engine, the callback hub, and the dispatcher into
// one HTTP handler.
type Server struct {
	engine     *market.Engine
	hub        *hub.Hub
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

// New creates the market HTTP surface.
func New(engine *market.Engine, h *hub.Hub, d *notify.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, hub: h, dispatcher: d, logger: logger}
}

// Router builds the gin handler.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/items", s.handleListItems)
	r.GET("/ws", s.handleAttach)

	r.POST("/register", s.handleRegister)
	r.POST("/unregister", s.handleUnregister)
	r.POST("/sell", s.handleSell)
	r.POST("/buy", s.handleBuy)
	r.POST("/wish", s.handleWish)

	return r
}

type traderRequest struct {
	Trader string `json:"trader"`
}

type itemRequest struct {
	Item   model.Item `json:"item"`
	Trader string     `json:"trader"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"version":     version.Version,
		"engine":      s.engine.Stats(),
		"callbacks":   s.dispatcher.Stats(),
		"connections": s.hub.Stats(),
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req traderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Trader == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "BadRequest", Error: "trader name is required"})
		return
	}
	if err := s.engine.Register(req.Trader); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trader": req.Trader, "registered": true})
}

func (s *Server) handleUnregister(c *gin.Context) {
	var req traderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Trader == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "BadRequest", Error: "trader name is required"})
		return
	}
	if err := s.engine.Unregister(req.Trader); err != nil {
		s.writeError(c, err)
		return
	}
	s.hub.Detach(req.Trader)
	c.JSON(http.StatusOK, gin.H{"trader": req.Trader, "registered": false})
}

func (s *Server) handleSell(c *gin.Context) {
	req, ok := s.bindItemRequest(c)
	if !ok {
		return
	}
	if err := s.engine.Sell(c.Request.Context(), req.Item, model.TraderRef{ClientName: req.Trader}); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listed": req.Item})
}

func (s *Server) handleBuy(c *gin.Context) {
	req, ok := s.bindItemRequest(c)
	if !ok {
		return
	}
	if err := s.engine.Buy(c.Request.Context(), req.Item, model.TraderRef{ClientName: req.Trader}); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bought": req.Item})
}

func (s *Server) handleWish(c *gin.Context) {
	req, ok := s.bindItemRequest(c)
	if !ok {
		return
	}
	if err := s.engine.Wish(req.Item, model.TraderRef{ClientName: req.Trader}); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wished": req.Item})
}

func (s *Server) handleListItems(c *gin.Context) {
	listing, offers := s.engine.ListItems()
	c.JSON(http.StatusOK, gin.H{
		"listing": listing,
		"items":   offers,
		"count":   len(offers),
	})
}

// handleAttach upgrades a registered trader's connection into its
// callback sink.
func (s *Server) handleAttach(c *gin.Context) {
	trader := c.Query("trader")
	if trader == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "BadRequest", Error: "trader query parameter is required"})
		return
	}
	if !s.engine.IsRegistered(trader) {
		c.JSON(http.StatusNotFound, errorResponse{
			Code:  market.CodeNotRegistered,
			Error: "trader " + trader + " not registered",
		})
		return
	}
	if err := s.hub.Attach(c.Writer, c.Request, trader); err != nil {
		// Upgrade failures write their own response.
		s.logger.Warn("callback attach failed", "trader", trader, "error", err)
	}
}

func (s *Server) bindItemRequest(c *gin.Context) (itemRequest, bool) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "BadRequest", Error: err.Error()})
		return req, false
	}
	if req.Trader == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "BadRequest", Error: "trader name is required"})
		return req, false
	}
	return req, true
}

// writeError maps engine and bank errors to wire responses. Bank errors
// pass through with their original codes.
func (s *Server) writeError(c *gin.Context, err error) {
	var marketErr *market.Error
	if errors.As(err, &marketErr) {
		c.JSON(statusForMarket(marketErr.Code), errorResponse{Code: marketErr.Code, Error: marketErr.Message})
		return
	}
	var bankErr *bank.Error
	if errors.As(err, &bankErr) {
		c.JSON(statusForBank(bankErr.Code), errorResponse{Code: bankErr.Code, Error: bankErr.Message})
		return
	}

	s.logger.Error("bank call failed", "error", err)
	c.JSON(http.StatusBadGateway, errorResponse{Code: "BankUnavailable", Error: err.Error()})
}

func statusForMarket(code string) int {
	switch code {
	case market.CodeAlreadyRegistered, market.CodeAlreadyListed,
		market.CodeDuplicateWish, market.CodeWishConflict:
		return http.StatusConflict
	case market.CodeNotRegistered, market.CodeNotListed,
		market.CodeNoSellerAccount, market.CodeNoBuyerAccount:
		return http.StatusNotFound
	case market.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func statusForBank(code string) int {
	switch code {
	case bank.CodeOverdraft:
		return http.StatusPaymentRequired
	case bank.CodeNegativeAmount:
		return http.StatusBadRequest
	case bank.CodeNoSuchAccount:
		return http.StatusNotFound
	case bank.CodeAccountExists:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
