// internal/app/features/account/routes.go
package account

import (
	"github.com/amanahtour/safarhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for the signed-in user's own account.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/", h.HandleGet)
	r.Post("/verification-request", h.HandleSubmitVerification)
	r.Get("/watch", h.HandleWatch)
	return r
}
