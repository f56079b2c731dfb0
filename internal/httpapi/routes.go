package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vaderboard-backend/internal/store"
	"vaderboard-backend/internal/ws"
)

// SetupRoutes builds the router with the API and websocket deps
// injected. Mutation routes live under /admin behind the session guard;
// /login is the only unguarded mutation.
func SetupRoutes(api *API, deps ws.Deps, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Post("/login", api.Login)
	r.Get("/event/info", api.CurrentEventInfo)
	r.Get("/event/info/id", api.EventInfo)
	r.Get("/event/info/all", api.EventInfoAll)
	r.Get("/team/info", api.TeamInfo)
	r.Get("/team/info/all", api.TeamInfoAll)
	r.Get("/user/info", api.UserInfo)
	r.Get("/user/info/all", api.UserInfoAll)

	// Persistent text channels
	r.Get("/vaderboard", ws.Board(deps))
	r.Get("/event/fts/{count}", ws.FTS(deps, ws.FTSEvents))
	r.Get("/team/fts/{count}", ws.FTS(deps, ws.FTSTeams))
	r.Get("/user/fts/{count}", ws.FTS(deps, ws.FTSUsers))
	r.Get("/event/info/team/{count}", ws.Scoped(deps, store.ModeTeams))
	r.Get("/event/info/team/rem_members/{count}", ws.Scoped(deps, store.ModeRemainingUsers))
	r.Get("/event/info/user/{count}", ws.Scoped(deps, store.ModeEventUsers))

	// Admin-gated mutations
	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminOnly(api.Sessions, api.Log))
		r.Post("/event/add", api.AddEvent)
		r.Post("/event/start", api.StartEvent)
		r.Post("/event/stop", api.StopEvent)
		r.Post("/event/delete", api.DeleteEvent)
		r.Post("/event/team/add", api.AddTeam)
		r.Post("/event/team/add/with_members", api.AddTeamWithMembers)
		r.Post("/event/team/add/members", api.AddMembers)
		r.Post("/event/user/add", api.AddUser)
		r.Post("/score/update", api.UpdateScore)
		r.Post("/score/reset", api.ResetScore)
		r.Post("/team/delete", api.DeleteTeam)
		r.Post("/user/delete", api.DeleteUser)
	})

	// Admin UI assets
	r.Handle("/*", http.FileServer(http.Dir(staticDir)))

	return r
}
