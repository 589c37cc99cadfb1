package httppresentation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	appOrder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/application/stats"
	domainOrder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerUserID         = "X-User-ID"
	maxBodyBytes         = 1 << 20
)

// UseCases are the application entry points the REST boundary exposes.
type UseCases struct {
	CreateOrder application.UseCase[appOrder.CreateOrderInput, *domainOrder.Order]
	UpdateOrder application.UseCase[appOrder.UpdateOrderInput, *domainOrder.Order]
	DeleteOrder application.UseCase[appOrder.DeleteOrderInput, struct{}]
	GetOrder    application.UseCase[appOrder.GetOrderInput, *appOrder.EnrichedOrder]
	ListOrders  application.UseCase[appOrder.ListOrdersInput, *appOrder.ListOrdersResult]
	Overview    application.UseCase[stats.SummarizeInput, *stats.Summary]
}

type Handler struct {
	uc      UseCases
	metrics http.Handler
	log     observability.Logger

	httpCounter   observability.Counter   // http_requests_total{method,route,status}
	httpHistogram observability.Histogram // http_request_duration_seconds{method,route,status}
}

// NewHandler builds the REST boundary. metrics serves /metrics and may be nil.
func NewHandler(uc UseCases, metrics http.Handler, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		uc:            uc,
		metrics:       metrics,
		log:           tel.Logger().With(observability.F("component", componentHTTPHandler)),
		httpCounter:   tel.Metrics().Counter(observability.MHTTPRequests),
		httpHistogram: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Handler
	h.muxHandle(mux, "POST /orders", h.handleCreateOrder)
	h.muxHandle(mux, "GET /orders", h.handleListOrders)
	h.muxHandle(mux, "GET /orders/stats/overview", h.handleOverview)
	h.muxHandle(mux, "GET /orders/{id}", h.handleGetOrder)
	h.muxHandle(mux, "PUT /orders/{id}", h.handleUpdateOrder)
	h.muxHandle(mux, "DELETE /orders/{id}", h.handleDeleteOrder)
	h.muxHandle(mux, "GET /health", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			actor,
		)(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), pattern)))
	}))
}

func actor(r *http.Request) string {
	return r.Header.Get(headerUserID)
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req appOrder.CreateOrderInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	req.Actor = actor(r)

	created, err := h.uc.CreateOrder.Execute(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req appOrder.UpdateOrderInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	req.ID = r.PathValue("id")
	req.Actor = actor(r)

	updated, err := h.uc.UpdateOrder.Execute(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type deleteOrderResponse struct {
	Deleted string `json:"deleted"`
	Soft    bool   `json:"soft"`
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	soft := false
	if raw := r.URL.Query().Get("soft"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeDomainError(w, r, fieldError("soft", "must be true or false"))
			return
		}
		soft = v
	}

	id := r.PathValue("id")
	if _, err := h.uc.DeleteOrder.Execute(r.Context(), appOrder.DeleteOrderInput{ID: id, Actor: actor(r), Soft: soft}); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteOrderResponse{Deleted: id, Soft: soft})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	found, err := h.uc.GetOrder.Execute(r.Context(), appOrder.GetOrderInput{ID: r.PathValue("id")})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	in, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	result, err := h.uc.ListOrders.Execute(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	verr := &domainOrder.ValidationError{}
	filter := parseFilter(q, verr)
	period, err := stats.ParsePeriod(q.Get("period"))
	if err != nil {
		var perr *domainOrder.ValidationError
		if errors.As(err, &perr) {
			verr.Merge(perr)
		}
	}
	if err := verr.Err(); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	summary, err := h.uc.Overview.Execute(r.Context(), stats.SummarizeInput{Filter: filter, Period: period})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		return fieldError("body", msg)
	}
	if decoder.More() {
		return fieldError("body", "must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) logFailure(r *http.Request, status int, code string, err error) {
	logger := logctx.FromOr(r.Context(), h.log)
	fields := []observability.Field{
		observability.F("code", code),
		observability.F("status", status),
		observability.F("error", err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request_failed", fields...)
		return
	}
	logger.Debug("request_rejected", fields...)
}

func fieldError(field, message string) error {
	return &domainOrder.ValidationError{Fields: []domainOrder.FieldError{{Field: field, Message: message}}}
}
