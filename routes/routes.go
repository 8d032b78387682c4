package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/scorekeep/prediction-league/handlers"
	"github.com/scorekeep/prediction-league/middleware"
)

// SetupRoutes wires the full HTTP surface. Reads are public, prediction
// writes need a verified user, everything that mutates tournament state is
// admin only.
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	phaseHandler *handlers.PhaseHandler,
	predictionHandler *handlers.PredictionHandler,
	rankingHandler *handlers.RankingHandler,
	leagueHandler *handlers.LeagueHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.List)
		r.Get("/{tournamentID}", tournamentHandler.GetBracket)
		r.Get("/{tournamentID}/phases", tournamentHandler.ListPhases)
		r.Get("/{tournamentID}/matches", matchHandler.ListMatches)
		r.Get("/{tournamentID}/groups/{group}/standings", tournamentHandler.GroupStandings)
		r.Get("/{tournamentID}/rankings/global", rankingHandler.GlobalRanking)
		r.Get("/{tournamentID}/leaderboard", rankingHandler.Leaderboard)
		r.Get("/{tournamentID}/leagues", leagueHandler.List)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Get("/{tournamentID}/predictions", predictionHandler.ListMine)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.RequireRole("admin"))

			r.Post("/", tournamentHandler.Seed)
			r.Post("/{tournamentID}/leagues", leagueHandler.Create)
			r.Post("/{tournamentID}/phases/{phase}/unlock", phaseHandler.Unlock)
			r.Post("/{tournamentID}/phases/{phase}/reopen", phaseHandler.Reopen)
			r.Put("/{tournamentID}/phases/{phase}/lock", phaseHandler.SetLock)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetMatch)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.RequireRole("admin"))

			r.Post("/{matchID}/result", matchHandler.RecordResult)
			r.Put("/{matchID}/result", matchHandler.CorrectResult)
			r.Put("/{matchID}/lock", matchHandler.SetManualLock)
		})
	})

	router.Route("/predictions", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Post("/", predictionHandler.Submit)
	})

	router.Route("/leagues", func(r chi.Router) {
		r.Get("/{leagueID}/ranking", rankingHandler.LeagueRanking)
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
