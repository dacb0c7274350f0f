// internal/app/features/login/routes.go
package login

import (
	"github.com/amanahtour/safarhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for password login and logout. Mounted at the
// root so the paths read /login and /logout.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.HandleLogin)
	r.With(auth.RequireSignedIn).Post("/logout", h.HandleLogout)
	return r
}
