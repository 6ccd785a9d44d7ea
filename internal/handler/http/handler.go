package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stocksim/paper-broker/internal/handler/middleware"
	"github.com/stocksim/paper-broker/internal/models"
	"github.com/stocksim/paper-broker/internal/quote"
	"github.com/stocksim/paper-broker/internal/service"
	"github.com/stocksim/paper-broker/lib/errs"
)

const (
	userCtx            = "userID"
	refreshTokenCookie = "refreshToken"
)

type Handler struct {
	authService      service.AuthService
	tokenService     service.TokenService
	tradeService     service.TradeService
	portfolioService service.PortfolioService
	provider         quote.Provider
	log              *slog.Logger
	jwtSecret        string
	refreshTokenTTL  time.Duration
}

func NewHandler(authService service.AuthService,
	tokenService service.TokenService,
	tradeService service.TradeService,
	portfolioService service.PortfolioService,
	provider quote.Provider,
	log *slog.Logger,
	jwtSecret string,
	refreshTokenTTL time.Duration,
) *Handler {
	return &Handler{
		authService:      authService,
		tokenService:     tokenService,
		tradeService:     tradeService,
		portfolioService: portfolioService,
		provider:         provider,
		log:              log,
		jwtSecret:        jwtSecret,
		refreshTokenTTL:  refreshTokenTTL,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.register)
			auth.POST("/login", h.login)
			auth.POST("/refresh", h.refresh)
			auth.POST("/logout", h.logout)
		}

		trading := api.Group("", middleware.AuthMiddleware(h.jwtSecret, h.log))
		{
			trading.GET("/portfolio", h.portfolio)
			trading.GET("/history", h.history)
			trading.GET("/quote/:symbol", h.quote)
			trading.POST("/buy", h.buy)
			trading.POST("/sell", h.sell)
		}
	}
}

type registerRequest struct {
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Confirmation string `json:"confirmation" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.Confirmation)
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "username is already taken"})
			return
		}
		h.respondError(c, err)
		return
	}

	// A fresh registration is also a login.
	accessToken, refreshToken, err := h.tokenService.GenerateTokens(user.ID, user.Username)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, refreshToken)
	c.JSON(http.StatusCreated, gin.H{"accessToken": accessToken})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	accessToken, refreshToken, err := h.tokenService.GenerateTokens(user.ID, user.Username)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, refreshToken)
	c.JSON(http.StatusOK, gin.H{"accessToken": accessToken})
}

func (h *Handler) refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshTokenCookie)
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token is missing"})
		return
	}

	accessToken, newRefreshToken, err := h.tokenService.RefreshToken(refreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, newRefreshToken)
	c.JSON(http.StatusOK, gin.H{"accessToken": accessToken})
}

func (h *Handler) logout(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshTokenCookie)
	if err == nil && refreshToken != "" {
		if err := h.tokenService.Logout(refreshToken); err != nil {
			h.respondError(c, err)
			return
		}
	}

	c.SetCookie(refreshTokenCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) portfolio(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	view, err := h.portfolioService.Portfolio(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) history(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	entries, err := h.portfolioService.History(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

func (h *Handler) quote(c *gin.Context) {
	q, err := h.provider.Lookup(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, q)
}

type tradeRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Shares string `json:"shares" binding:"required"`
}

func (h *Handler) buy(c *gin.Context) {
	h.trade(c, h.tradeService.Buy)
}

func (h *Handler) sell(c *gin.Context) {
	h.trade(c, h.tradeService.Sell)
}

type tradeFunc func(ctx context.Context, userID uuid.UUID, symbol string, shares decimal.Decimal) (*models.HistoryEntry, error)

func (h *Handler) trade(c *gin.Context, execute tradeFunc) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	shares, err := decimal.NewFromString(req.Shares)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid share count format"})
		return
	}

	entry, err := execute(c.Request.Context(), userID, req.Symbol, shares)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *Handler) currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDRaw, ok := c.Get(userCtx)
	if !ok {
		h.log.Error("handler: userID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDRaw.(string))
	if err != nil {
		h.log.Error("handler: failed to parse userID from context", "userID", userIDRaw)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id in token"})
		return uuid.Nil, false
	}

	return userID, true
}

func (h *Handler) setRefreshCookie(c *gin.Context, refreshToken string) {
	c.SetCookie(refreshTokenCookie, refreshToken, int(h.refreshTokenTTL/time.Second), "/", "", false, true)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInvalidCredentials), errors.Is(err, errs.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrUnknownSymbol), errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInsufficientFunds), errors.Is(err, errs.ErrInsufficientShares):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrQuoteProvider):
		h.log.Error("quote provider failure", slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "quote lookup failed"})
	default:
		h.log.Error("internal error", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
