// internal/app/features/referrals/routes.go
package referrals

import (
	"github.com/amanahtour/safarhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the self-service referral subrouter. Validation is public
// so the signup form can pre-check a code; everything else needs a session.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/validate", h.HandleValidate)
	r.With(auth.RequireSignedIn).Get("/my-code", h.HandleMyCode)
	r.With(auth.RequireSignedIn).Get("/my-balance", h.HandleMyBalance)
	return r
}

// AdminRoutes returns the admin commission subrouter. The caller mounts it
// behind the management role middleware.
func AdminRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/credit", h.HandleCredit)
	return r
}
