package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the HTTP surface: the JSON API under /game/api and,
// when staticPath is set, the web client under /game/.
func NewRouter(game *GameHandler, mw *Middleware, staticPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Logging)

	r.Route("/game/api", func(r chi.Router) {
		r.Use(mw.OriginCheck)
		r.Use(mw.RateLimit)
		game.RegisterRoutes(r)
	})

	if staticPath != "" {
		r.Handle("/game/*", http.StripPrefix("/game/", http.FileServer(http.Dir(staticPath))))
	}

	return r
}
