// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	accountfeature "github.com/amanahtour/safarhub/internal/app/features/account"
	approvalsfeature "github.com/amanahtour/safarhub/internal/app/features/approvals"
	authgooglefeature "github.com/amanahtour/safarhub/internal/app/features/authgoogle"
	errorsfeature "github.com/amanahtour/safarhub/internal/app/features/errors"
	healthfeature "github.com/amanahtour/safarhub/internal/app/features/health"
	loginfeature "github.com/amanahtour/safarhub/internal/app/features/login"
	referralsfeature "github.com/amanahtour/safarhub/internal/app/features/referrals"
	signupfeature "github.com/amanahtour/safarhub/internal/app/features/signup"
	"github.com/amanahtour/safarhub/internal/app/referral"
	applicationstore "github.com/amanahtour/safarhub/internal/app/store/applications"
	"github.com/amanahtour/safarhub/internal/app/store/audit"
	balancestore "github.com/amanahtour/safarhub/internal/app/store/balances"
	"github.com/amanahtour/safarhub/internal/app/store/oauthstate"
	codestore "github.com/amanahtour/safarhub/internal/app/store/referralcodes"
	userstore "github.com/amanahtour/safarhub/internal/app/store/users"
	"github.com/amanahtour/safarhub/internal/app/system/auditlog"
	"github.com/amanahtour/safarhub/internal/app/system/auth"
	"github.com/amanahtour/safarhub/internal/app/system/roles"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It builds the stores and the referral
// engine once, then mounts the feature routers on a chi router behind the
// session middleware.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := coreCfg.Env == "prod"
	if err := auth.InitSessionStore(appCfg.SessionKey, appCfg.SessionDomain, secure, logger); err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase

	// Stores
	users := userstore.New(db)
	applications := applicationstore.New(db)
	codes := codestore.New(db)
	balances := balancestore.New(db)
	auditStore := audit.New(db)
	states := oauthstate.New(db)

	// Cross-store services
	referrals := referral.NewEngine(deps.MongoClient, users, codes, balances, logger)
	auditLog := auditlog.New(auditStore, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(auth.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Account creation and authentication
	signupHandler := signupfeature.NewHandler(users, applications, referrals, auditLog, errLog, logger)
	r.Mount("/signup", signupfeature.Routes(signupHandler))

	loginHandler := loginfeature.NewHandler(users, referrals, auditLog, errLog, logger)
	r.Mount("/", loginfeature.Routes(loginHandler))

	googleHandler := authgooglefeature.NewHandler(
		users, referrals, auditLog, states,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL,
		logger)
	if googleHandler.IsConfigured() {
		r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
	}

	// Signed-in self service
	accountHandler := accountfeature.NewHandler(users, applications, errLog, logger)
	r.Mount("/account", accountfeature.Routes(accountHandler))

	// Referral code and balance surface
	referralsHandler := referralsfeature.NewHandler(codes, balances, auditLog, errLog, logger)
	r.Mount("/referrals", referralsfeature.Routes(referralsHandler))

	// Admin review surface
	approvalsHandler := approvalsfeature.NewHandler(users, applications, referrals, auditLog, errLog, logger)
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireRole(roles.Admin, roles.Supervisor, roles.Direktur))
		r.Mount("/applications", approvalsfeature.ApplicationRoutes(approvalsHandler))
		r.Mount("/users", approvalsfeature.UserRoutes(approvalsHandler))
		r.Mount("/referrals", referralsfeature.AdminRoutes(referralsHandler))
	})

	return r, nil
}
