package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/itbasis/go-clock"
	_ "github.com/lib/pq"
	"github.com/scorekeep/prediction-league/config"
	"github.com/scorekeep/prediction-league/db"
	"github.com/scorekeep/prediction-league/handlers"
	"github.com/scorekeep/prediction-league/live"
	"github.com/scorekeep/prediction-league/middleware"
	"github.com/scorekeep/prediction-league/repositories"
	api "github.com/scorekeep/prediction-league/routes"
	"github.com/scorekeep/prediction-league/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	wsHub := live.NewHub(logger)
	go wsHub.Run()
	logger.Info("websocket hub started")

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	phaseRepo := repositories.NewPostgresPhaseStatusRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	predictionRepo := repositories.NewPostgresPredictionRepository(dbConn)
	leagueRepo := repositories.NewPostgresLeagueRepository(dbConn)
	rankingRepo := repositories.NewPostgresGlobalRankingRepository(dbConn)
	logger.Info("repositories initialized")

	clk := clock.New()

	resolverService := services.NewResolverService(matchRepo, teamRepo)
	phaseService := services.NewPhaseService(phaseRepo, matchRepo, clk, logger)
	rankingService := services.NewRankingService(tournamentRepo, phaseRepo, predictionRepo, leagueRepo, rankingRepo)
	matchService := services.NewMatchService(
		dbConn,
		matchRepo,
		predictionRepo,
		resolverService,
		phaseService,
		rankingService,
		wsHub,
		logger,
	)
	predictionService := services.NewPredictionService(
		dbConn,
		matchRepo,
		phaseRepo,
		predictionRepo,
		leagueRepo,
		services.PermissiveMembership{},
		clk,
		cfg.LockBuffer,
		logger,
	)
	fixtureService := services.NewFixtureService(
		dbConn,
		tournamentRepo,
		teamRepo,
		matchRepo,
		phaseRepo,
		clk,
		logger,
	)
	leagueService := services.NewLeagueService(leagueRepo, tournamentRepo, logger)
	logger.Info("services initialized")

	auth := middleware.NewAuthenticator(cfg.JWTSecretKey)
	tournamentHandler := handlers.NewTournamentHandler(fixtureService, phaseService, resolverService)
	matchHandler := handlers.NewMatchHandler(matchService)
	phaseHandler := handlers.NewPhaseHandler(phaseService)
	predictionHandler := handlers.NewPredictionHandler(predictionService)
	rankingHandler := handlers.NewRankingHandler(rankingService)
	leagueHandler := handlers.NewLeagueHandler(leagueService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		auth,
		tournamentHandler,
		matchHandler,
		phaseHandler,
		predictionHandler,
		rankingHandler,
		leagueHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
