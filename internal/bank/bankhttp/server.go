// Package bankhttp exposes the bank ledger over HTTP/JSON.
package bankhttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oskarlind/tradingpost/internal/bank"
	"github.com/oskarlind/tradingpost/internal/model"
	"github.com/oskarlind/tradingpost/internal/version"
)

// Server wraps a ledger with the HTTP surface consumed by the market
// and by trader clients.
type Server struct {
	ledger *bank.Ledger
	logger *slog.Logger
}

// NewServer creates the HTTP surface over the given ledger.
func NewServer(ledger *bank.Ledger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ledger: ledger, logger: logger}
}

// Router builds the gin handler.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)

	accounts := r.Group("/accounts")
	accounts.POST("", s.handleNewAccount)
	accounts.GET("/:name", s.handleGetAccount)
	accounts.DELETE("/:name", s.handleDeleteAccount)
	accounts.GET("/:name/balance", s.handleGetAccount)
	accounts.POST("/:name/deposit", s.handleDeposit)
	accounts.POST("/:name/withdraw", s.handleWithdraw)

	return r
}

type accountRequest struct {
	Name string `json:"name"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type accountResponse struct {
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  version.Version,
		"accounts": len(s.ledger.Names()),
	})
}

func (s *Server) handleNewAccount(c *gin.Context) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "BadRequest", Error: "account name is required"})
		return
	}
	if err := s.ledger.NewAccount(req.Name); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, accountResponse{Name: req.Name, Balance: model.FormatAmount(0)})
}

func (s *Server) handleGetAccount(c *gin.Context) {
	name := c.Param("name")
	balance, err := s.ledger.Balance(name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountResponse{Name: name, Balance: model.FormatAmount(balance)})
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	if err := s.ledger.DeleteAccount(c.Param("name")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeposit(c *gin.Context) {
	s.handleTransfer(c, s.ledger.Deposit)
}

func (s *Server) handleWithdraw(c *gin.Context) {
	s.handleTransfer(c, s.ledger.Withdraw)
}

func (s *Server) handleTransfer(c *gin.Context, op func(string, int64) error) {
	name := c.Param("name")

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "BadRequest", Error: "amount is required"})
		return
	}
	cents, err := model.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Code:  bank.CodeNegativeAmount,
			Error: err.Error(),
		})
		return
	}
	if err := op(name, cents); err != nil {
		s.writeError(c, err)
		return
	}

	balance, err := s.ledger.Balance(name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountResponse{Name: name, Balance: model.FormatAmount(balance)})
}

func (s *Server) writeError(c *gin.Context, err error) {
	var bankErr *bank.Error
	if !errors.As(err, &bankErr) {
		s.logger.Error("unexpected ledger error", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "Internal", Error: err.Error()})
		return
	}
	c.JSON(statusFor(bankErr.Code), errorResponse{Code: bankErr.Code, Error: bankErr.Message})
}

func statusFor(code string) int {
	switch code {
	case bank.CodeNoSuchAccount:
		return http.StatusNotFound
	case bank.CodeAccountExists:
		return http.StatusConflict
	case bank.CodeOverdraft:
		return http.StatusPaymentRequired
	case bank.CodeNegativeAmount:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
