package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/happyypeet/vibe-guide-demo-total/internal/models"
	"github.com/happyypeet/vibe-guide-demo-total/internal/service"
	"github.com/happyypeet/vibe-guide-demo-total/internal/store"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibeguide_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vibeguide_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 120},
	}, []string{"method", "endpoint"})

	webhookTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibeguide_payment_notify_total",
		Help: "Payment gateway notifications, labeled by outcome",
	}, []string{"outcome"})
)

type Handler struct {
	ledger   *service.Ledger
	payments *service.Payments
	projects *service.Projects
}

func NewHandler(ledger *service.Ledger, payments *service.Payments, projects *service.Projects) *Handler {
	return &Handler{ledger: ledger, payments: payments, projects: projects}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Projects ---

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	project, err := h.projects.Create(r.Context(), UserID(r), req)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, project)
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context(), UserID(r))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "System error listing projects")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	respondWithJSON(w, http.StatusOK, projects)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid project id")
		return
	}

	project, err := h.projects.Get(r.Context(), UserID(r), id)
	if err != nil {
		h.respondProjectError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, project)
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid project id")
		return
	}

	var req models.UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	project, err := h.projects.Update(r.Context(), UserID(r), id, req)
	if err != nil {
		h.respondProjectError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, project)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid project id")
		return
	}

	if err := h.projects.Delete(r.Context(), UserID(r), id); err != nil {
		h.respondProjectError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) respondProjectError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrProjectNotFound) {
		respondWithError(w, http.StatusNotFound, "Project not found")
		return
	}
	respondWithError(w, http.StatusInternalServerError, "System error")
}

// --- AI routes ---

func (h *Handler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/ai/questions"))
	defer timer.ObserveDuration()

	var req models.QuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	questions, err := h.projects.Questions(r.Context(), req.Description)
	if err != nil {
		log.Printf("question generation failed: %v", err)
		respondWithError(w, http.StatusBadGateway, "Question generation failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]string{"questions": questions})
}

func (h *Handler) GenerateDocuments(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/ai/documents"))
	defer timer.ObserveDuration()

	var req models.DocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	docs, err := h.projects.GenerateDocuments(r.Context(), UserID(r), req)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]any{"documents": docs})
	case errors.Is(err, store.ErrInsufficientCredits):
		respondWithError(w, http.StatusPaymentRequired, "Insufficient credits")
	case errors.Is(err, service.ErrProjectNotFound):
		respondWithError(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, service.ErrDebitAfterWork):
		// The documents exist; the debit lost a race. Return them but say so.
		log.Printf("billing failure after generation: %v", err)
		respondWithJSON(w, http.StatusOK, map[string]any{"documents": docs, "billing": "failed"})
	default:
		log.Printf("document generation failed: %v", err)
		respondWithError(w, http.StatusBadGateway, "Document generation failed")
	}
}

// --- Payments ---

func (h *Handler) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	resp, err := h.payments.CreateOrder(r.Context(), UserID(r), req.PlanID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPlan) {
			respondWithError(w, http.StatusUnprocessableEntity, "Unknown plan")
			return
		}
		log.Printf("order creation failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create order")
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

// PaymentNotify receives the gateway's asynchronous notification, delivered
// as either a query string or a form-encoded body. The response contract is
// the gateway's: plain "success" stops retries, anything else triggers one.
func (h *Handler) PaymentNotify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		webhookTotal.WithLabelValues("malformed").Inc()
		respondPlain(w, http.StatusBadRequest, "fail")
		return
	}

	params := make(map[string]string, len(r.Form))
	for k, v := range r.Form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	err := h.payments.HandleNotify(r.Context(), params)
	switch {
	case err == nil:
		webhookTotal.WithLabelValues("ok").Inc()
		respondPlain(w, http.StatusOK, "success")
	case errors.Is(err, service.ErrBadSignature):
		webhookTotal.WithLabelValues("bad_signature").Inc()
		respondPlain(w, http.StatusBadRequest, "fail")
	case errors.Is(err, service.ErrOrderNotFound):
		webhookTotal.WithLabelValues("unknown_order").Inc()
		respondPlain(w, http.StatusBadRequest, "fail")
	case errors.Is(err, service.ErrAmountMismatch):
		webhookTotal.WithLabelValues("amount_mismatch").Inc()
		respondPlain(w, http.StatusBadRequest, "fail")
	default:
		// Persistence trouble: a non-success response makes the gateway
		// redeliver, which is the retry mechanism for this path.
		log.Printf("payment notify failed: %v", err)
		webhookTotal.WithLabelValues("error").Inc()
		respondPlain(w, http.StatusInternalServerError, "fail")
	}
}

// --- User routes ---

func (h *Handler) UserCredits(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)

	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "System error")
		return
	}
	usage, err := h.ledger.RecentUsage(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "System error")
		return
	}
	if usage == nil {
		usage = []models.CreditEntry{}
	}
	respondWithJSON(w, http.StatusOK, models.CreditsResponse{Credits: balance, Usage: usage})
}

func (h *Handler) UserPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.History(r.Context(), UserID(r))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "System error")
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	respondWithJSON(w, http.StatusOK, payments)
}

// --- Helpers ---

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondPlain(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	w.Write([]byte(body))
}
