package main

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/happyypeet/vibe-guide-demo-total/internal/ai"
	"github.com/happyypeet/vibe-guide-demo-total/internal/api"
	"github.com/happyypeet/vibe-guide-demo-total/internal/config"
	"github.com/happyypeet/vibe-guide-demo-total/internal/service"
	"github.com/happyypeet/vibe-guide-demo-total/internal/store"
	"github.com/happyypeet/vibe-guide-demo-total/internal/zpay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	st, err := store.NewStore(cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer st.Close()

	// Initialize Layers
	gateway := zpay.NewClient(cfg.ZPayPID, cfg.ZPayKey, cfg.ZPayGatewayURL)
	completions := ai.NewClient(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel, cfg.SiteURL)

	ledger := service.NewLedger(st)
	payments := service.NewPayments(st, gateway, cfg.SiteURL)
	projects := service.NewProjects(st, completions, ledger, cfg.AITimeout)

	handler := api.NewHandler(ledger, payments, projects)
	authn := api.NewHTTPAuthenticator(cfg.AuthVerifyURL)

	// Router
	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheck)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()

	// The gateway calls this unauthenticated; authenticity comes from the
	// notification signature.
	apiV1.HandleFunc("/payment/notify", handler.PaymentNotify).Methods("GET", "POST")

	authed := apiV1.NewRoute().Subrouter()
	authed.Use(api.AuthMiddleware(authn, st))
	authed.HandleFunc("/projects", handler.CreateProject).Methods("POST")
	authed.HandleFunc("/projects", handler.ListProjects).Methods("GET")
	authed.HandleFunc("/projects/{id}", handler.GetProject).Methods("GET")
	authed.HandleFunc("/projects/{id}", handler.UpdateProject).Methods("PUT")
	authed.HandleFunc("/projects/{id}", handler.DeleteProject).Methods("DELETE")
	authed.HandleFunc("/payment/create", handler.CreatePaymentOrder).Methods("POST")
	authed.HandleFunc("/user/credits", handler.UserCredits).Methods("GET")
	authed.HandleFunc("/user/payments", handler.UserPayments).Methods("GET")

	aiRoutes := apiV1.NewRoute().Subrouter()
	aiRoutes.Use(api.AuthMiddleware(authn, st))
	aiRoutes.Use(api.RateLimit(rate.NewLimiter(rate.Limit(cfg.AIRateLimit), 5)))
	aiRoutes.HandleFunc("/ai/questions", handler.GenerateQuestions).Methods("POST")
	aiRoutes.HandleFunc("/ai/documents", handler.GenerateDocuments).Methods("POST")

	log.Printf("Server starting on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
