// internal/app/features/approvals/routes.go
package approvals

import "github.com/go-chi/chi/v5"

// ApplicationRoutes returns the application review subrouter. The caller
// mounts it under /admin behind the management role middleware.
func ApplicationRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HandleList)
	r.Post("/{id}/approve", h.HandleApprove)
	r.Post("/{id}/reject", h.HandleReject)
	return r
}

// UserRoutes returns the user-level admin actions subrouter.
func UserRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/set-pending", h.HandleSetPending)
	r.Post("/{id}/verification/approve", h.HandleVerificationApprove)
	r.Post("/{id}/verification/reject", h.HandleVerificationReject)
	return r
}
