package routers

import (
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mufasadev/coin-settlement/internal/di"
	http2 "github.com/mufasadev/coin-settlement/internal/infrastructure/api/http"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/api/middlewares"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

func NewRouter(container *di.Container) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", http2.AdminTokenHeader},
		MaxAge:         300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())

	// Set up v1 routes with a path prefix
	router.Route("/api/v1", func(r chi.Router) {
		r.With(middlewares.ProviderMiddleware(container.Registry)).
			Post(fmt.Sprintf("/webhooks/{%s}", http2.ProviderParam), container.WebhookHandler.Receive)

		r.Route("/users", func(r chi.Router) {
			r.Route(fmt.Sprintf("/{%s}", http2.UserIDParam), func(r chi.Router) {
				r.Use(middlewares.UserValidationMiddleware)
				ph := container.PaymentHandler
				r.Post("/deposits", ph.CreateDeposit)
				r.Post("/withdrawals", ph.CreateWithdrawal)

				wh := container.WalletHandler
				r.Get("/balance", wh.GetBalance)
				r.Get("/transactions", wh.ListTransactions)
				r.Post("/referrer", wh.RegisterReferrer)
			})
		})

		r.Get(fmt.Sprintf("/transactions/{%s}/status", http2.TransactionIDParam), container.PaymentHandler.GetStatus)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewares.AdminTokenMiddleware(container.AdminToken))
			ah := container.AdminHandler
			r.Post("/deposits/simulate", ah.SimulateDeposit)
			r.With(middlewares.UserValidationMiddleware).
				Post(fmt.Sprintf("/referrals/{%s}/requalify", http2.UserIDParam), ah.Requalify)
		})
	})

	return router
}
