package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/stocksim/paper-broker/internal/config"
	httphandler "github.com/stocksim/paper-broker/internal/handler/http"
	"github.com/stocksim/paper-broker/internal/quote"
	"github.com/stocksim/paper-broker/internal/repository"
	"github.com/stocksim/paper-broker/internal/service"
	"github.com/stocksim/paper-broker/storage/postgres"
	redisstorage "github.com/stocksim/paper-broker/storage/redis"
)

type App struct {
	cfg          *config.Config
	log          *slog.Logger
	httpServer   *http.Server
	storage      *postgres.Storage
	redisClient  *goredis.Client
	tokenService service.TokenService

	ctx    context.Context
	cancel context.CancelFunc
}

func New(log *slog.Logger, cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	storage, err := postgres.New(cfg.Database)
	if err != nil {
		cancel()
		panic(fmt.Errorf("failed to init storage: %w", err))
	}

	redisClient, err := redisstorage.New(ctx, cfg.Redis)
	if err != nil {
		cancel()
		panic(fmt.Errorf("failed to init redis: %w", err))
	}

	startingCash, err := decimal.NewFromString(cfg.Trading.StartingCash)
	if err != nil {
		cancel()
		panic(fmt.Errorf("invalid STARTING_CASH value: %w", err))
	}

	var provider quote.Provider = quote.NewYahooProvider(cfg.Quote.BaseURL, cfg.Quote.Timeout)
	provider = quote.NewCachedProvider(provider, redisClient, cfg.Quote.CacheTTL, log)

	usersRepo := repository.NewUsersRepository(storage.DB)
	historyRepo := repository.NewHistoryRepository(storage.DB)
	sessionsRepo := repository.NewSessionsRepository(storage.DB)

	authService := service.NewAuthService(usersRepo, startingCash)
	tokenService := service.NewTokenService(sessionsRepo, usersRepo, storage.DB, cfg.Token)
	tradeService := service.NewTradeService(provider, storage.DB)
	portfolioService := service.NewPortfolioService(usersRepo, historyRepo, provider)

	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	httpHandler := httphandler.NewHandler(authService, tokenService, tradeService, portfolioService,
		provider, log, cfg.Token.Secret, cfg.Token.RefreshToken)
	httpHandler.RegisterRoutes(ginEngine)

	httpServer := &http.Server{
		Addr:    net.JoinHostPort("", strconv.FormatUint(uint64(cfg.HTTP.Port), 10)),
		Handler: ginEngine,
	}

	return &App{
		cfg:          cfg,
		log:          log,
		httpServer:   httpServer,
		storage:      storage,
		redisClient:  redisClient,
		tokenService: tokenService,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (a *App) Run() error {
	errChan := make(chan error, 1)

	go a.runSessionCleanup()

	go func() {
		if err := a.runHTTP(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	err := <-errChan
	a.log.Warn("shutting down application due to an error", "error", err)

	a.Stop()
	return err
}

func (a *App) Stop() {
	a.log.Info("stopping application components gracefully...")

	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.Timeout)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("failed to gracefully shutdown HTTP server", "error", err)
	} else {
		a.log.Info("HTTP server stopped")
	}

	if err := a.redisClient.Close(); err != nil {
		a.log.Warn("failed to close redis client", "error", err)
	}

	if err := a.storage.Stop(); err != nil {
		a.log.Error("failed to stop storage", "error", err)
	} else {
		a.log.Info("database connection closed")
	}
}

func (a *App) runHTTP() error {
	const op = "app.runHTTP"

	a.log.Info("HTTP server is running", "addr", a.httpServer.Addr)

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *App) runSessionCleanup() {
	ticker := time.NewTicker(a.cfg.Token.SessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.log.Info("running expired sessions cleanup...")
			if err := a.tokenService.DeleteExpiredSessions(); err != nil {
				a.log.Error("failed to cleanup expired sessions", slog.Any("error", err))
			} else {
				a.log.Info("expired sessions cleanup finished successfully")
			}
		}
	}
}
