package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tjjston/sealedleague/handlers"
	"github.com/tjjston/sealedleague/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	stageHandler *handlers.StageHandler,
	scheduleHandler *handlers.ScheduleHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Route("/stage-items/{stageItemID}", func(r chi.Router) {
		r.Get("/", stageHandler.GetStageItem)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize("organizer", "admin"))

			r.Post("/build", stageHandler.BuildBracket)
			r.Post("/auto-advance-byes", stageHandler.AutoAdvanceByes)
			r.Post("/finalize-reset", stageHandler.FinalizeGrandFinalReset)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))
		r.Use(middleware.Authorize("organizer", "admin"))

		r.Post("/rounds/{roundID}/propagate", stageHandler.PropagateResults)
	})

	router.Route("/tournaments/{tournamentID}/schedule", func(r chi.Router) {
		r.Get("/", scheduleHandler.GetSchedule)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize("organizer", "admin"))

			r.Post("/", scheduleHandler.ScheduleAll)
			r.Post("/renormalize", scheduleHandler.RenormalizeSchedule)
			r.Put("/matches/{matchID}", scheduleHandler.RescheduleMatch)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
