package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/toko-order-engine.git/internal/inventory"
	"github.com/ariefcatur/toko-order-engine.git/internal/invoices"
	kafkax "github.com/ariefcatur/toko-order-engine.git/internal/kafka"
	"github.com/ariefcatur/toko-order-engine.git/internal/metrics"
	"github.com/ariefcatur/toko-order-engine.git/internal/redisx"
)

// Engine = operasi order yang di-expose handler; diimplementasikan
// invoices.Repo, di-fake di test.
type Engine interface {
	CreateInvoice(ctx context.Context, in invoices.CreateInvoiceInput) (invoices.CreateInvoiceResult, error)
	SubmitPayment(ctx context.Context, invoiceID string, amount int64, proofRef string) error
	Transition(ctx context.Context, invoiceID string, target invoices.Status, actor invoices.Actor, reason string) error
	CancelInvoice(ctx context.Context, invoiceID, reason string, actor invoices.Actor) error
	GetInvoice(ctx context.Context, invoiceID string) (invoices.Invoice, error)
	History(ctx context.Context, invoiceID string) ([]invoices.StatusLog, error)
	ListProducts(ctx context.Context) ([]invoices.Product, error)
}

// Publisher diabstraksi supaya handler bisa dites tanpa broker.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// EventSinks: satu producer per topic (per-topic writer, pola lama).
type EventSinks struct {
	Created   Publisher
	Status    Publisher
	Cancelled Publisher
}

type InvoicesHandler struct {
	Engine  Engine
	Events  EventSinks
	Redis   *redis.Client
	Metrics *metrics.EngineMetrics
	Service string
}

func (h *InvoicesHandler) Register(r *chi.Mux) {
	r.Post("/invoices", h.createInvoice)
	r.Post("/invoices/{id}/payments", h.submitPayment)
	r.Post("/invoices/{id}/status", h.transition)
	r.Post("/invoices/{id}/cancel", h.cancel)
	r.Get("/invoices/{id}", h.getInvoice)
	r.Get("/invoices/{id}/history", h.history)
	r.Get("/products", h.listProducts)
}

type CreateInvoiceReq struct {
	ExternalID    string               `json:"external_id"`
	CustomerID    *string              `json:"customer_id,omitempty"`
	CustomerName  string               `json:"customer_name"`
	CustomerPhone string               `json:"customer_phone"`
	Channel       string               `json:"channel"`
	PaymentOption string               `json:"payment_option"`
	CashierID     *string              `json:"cashier_id,omitempty"`
	Items         []invoices.ItemInput `json:"items"`
}

type CreateInvoiceResp struct {
	InvoiceID  string `json:"invoice_id"`
	Total      int64  `json:"total"`
	Idempotent bool   `json:"idempotent"`
}

type PaymentReq struct {
	Amount   int64  `json:"amount"`
	ProofRef string `json:"proof_ref"`
}

type TransitionReq struct {
	Status    string `json:"status"` // label kanonik atau legacy
	ActorName string `json:"actor_name"`
	ActorRole string `json:"actor_role"`
	Reason    string `json:"reason,omitempty"`
}

type CancelReq struct {
	Reason    string `json:"reason"`
	ActorName string `json:"actor_name"`
	ActorRole string `json:"actor_role"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEngineErr memetakan taxonomy error engine ke kode HTTP.
func writeEngineErr(w http.ResponseWriter, err error) {
	var stockErr *inventory.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient_stock",
			"product_id": stockErr.ProductID,
			"required":   stockErr.Required,
			"available":  stockErr.Available,
		})
	case errors.Is(err, invoices.ErrInvoiceNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invoice not found"})
	case invoices.IsConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, invoices.ErrEmptyOrder):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func actorFrom(name, role string) invoices.Actor {
	return invoices.Actor{Name: name, Role: invoices.Role(role)}
}

func (h *InvoicesHandler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.CustomerName == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Qty <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line item"})
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Engine.CreateInvoice(ctx, invoices.CreateInvoiceInput{
		ExternalID:    req.ExternalID,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Channel:       invoices.Channel(req.Channel),
		PaymentOption: req.PaymentOption,
		CashierID:     req.CashierID,
		Items:         req.Items,
	})
	if err != nil {
		var stockErr *inventory.InsufficientStockError
		if errors.As(err, &stockErr) && h.Metrics != nil {
			h.Metrics.StockRejections.Inc()
		}
		writeEngineErr(w, err)
		return
	}
	if h.Metrics != nil && !res.Existed {
		h.Metrics.InvoicesCreated.Inc()
	}

	// shortcut idempotency + cache status awal di Redis; DB tetap kebenaran
	if h.Redis != nil {
		if req.ExternalID != "" {
			idemKey := fmt.Sprintf(redisx.KeyIdemInvoiceCreate, req.ExternalID)
			_ = h.Redis.Set(ctx, idemKey, res.InvoiceID, redisx.TTLIdempotency).Err()
		}
		statusKey := fmt.Sprintf(redisx.KeyInvoiceStatus, res.InvoiceID)
		_ = h.Redis.Set(ctx, statusKey, `{"status":"awaiting_payment"}`, redisx.TTLStatusCache).Err()
	}

	h.publish(h.Events.Created, invoices.EventInvoiceCreated, res.InvoiceID,
		r.Header.Get("X-Request-Id"), invoices.InvoiceCreatedPayload{
			InvoiceID: res.InvoiceID,
			Channel:   invoices.Channel(req.Channel),
			Items:     req.Items,
			Total:     res.Total,
		})

	writeJSON(w, http.StatusAccepted, CreateInvoiceResp{
		InvoiceID: res.InvoiceID, Total: res.Total, Idempotent: res.Existed,
	})
}

func (h *InvoicesHandler) submitPayment(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")
	var req PaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.SubmitPayment(ctx, invoiceID, req.Amount, req.ProofRef); err != nil {
		writeEngineErr(w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.PaymentsAccepted.Inc()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *InvoicesHandler) transition(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")
	var req TransitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	target, ok := invoices.CanonicalStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status: " + req.Status})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor := actorFrom(req.ActorName, req.ActorRole)
	if err := h.Engine.Transition(ctx, invoiceID, target, actor, req.Reason); err != nil {
		writeEngineErr(w, err)
		return
	}
	h.afterTransition(ctx, invoiceID, target, actor, req.Reason, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusOK, map[string]string{"status": string(target)})
}

func (h *InvoicesHandler) cancel(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")
	var req CancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor := actorFrom(req.ActorName, req.ActorRole)
	if err := h.Engine.CancelInvoice(ctx, invoiceID, req.Reason, actor); err != nil {
		writeEngineErr(w, err)
		return
	}
	h.afterTransition(ctx, invoiceID, invoices.StatusCancelled, actor, req.Reason, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusOK, map[string]string{"status": string(invoices.StatusCancelled)})
}

// afterTransition: refresh cache + publish event sesudah transisi sukses.
func (h *InvoicesHandler) afterTransition(ctx context.Context, invoiceID string, target invoices.Status, actor invoices.Actor, reason, traceID string) {
	if h.Metrics != nil {
		h.Metrics.Transitions.WithLabelValues(string(target)).Inc()
	}
	var channel invoices.Channel
	if inv, err := h.Engine.GetInvoice(ctx, invoiceID); err == nil {
		channel = inv.Channel
	}
	label := invoices.DisplayLabel(channel, target)
	if h.Redis != nil {
		statusKey := fmt.Sprintf(redisx.KeyInvoiceStatus, invoiceID)
		_ = h.Redis.Set(ctx, statusKey,
			fmt.Sprintf(`{"status":%q,"label":%q}`, target, label), redisx.TTLStatusCache).Err()
	}
	h.publish(h.Events.Status, invoices.EventStatusChanged, invoiceID, traceID,
		invoices.StatusChangedPayload{
			InvoiceID: invoiceID,
			Channel:   channel,
			NewStatus: target,
			Label:     label,
			Actor:     actor.String(),
		})
	if target == invoices.StatusCancelled {
		h.publish(h.Events.Cancelled, invoices.EventInvoiceCancelled, invoiceID, traceID,
			invoices.InvoiceCancelledPayload{
				InvoiceID:   invoiceID,
				Reason:      reason,
				CancelledBy: actor.String(),
			})
	}
}

func (h *InvoicesHandler) publish(p Publisher, eventType, invoiceID, traceID string, payload any) {
	if p == nil {
		return
	}
	ev := invoices.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       traceID,
		CorrelationID: invoiceID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(invoices.PartitionKey(invoiceID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *InvoicesHandler) getInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyInvoiceStatus, invoiceID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	// 2) fallback DB
	inv, err := h.Engine.GetInvoice(ctx, invoiceID)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	body := map[string]any{
		"invoice_id": inv.ID,
		"status":     inv.Status,
		"label":      invoices.DisplayLabel(inv.Channel, inv.Status),
		"channel":    inv.Channel,
		"total":      inv.Total,
	}
	if h.Redis != nil {
		b, _ := json.Marshal(body)
		key := fmt.Sprintf(redisx.KeyInvoiceStatus, invoiceID)
		_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, body)
}

type StatusLogResp struct {
	Seq        int64   `json:"seq"`
	PrevStatus *string `json:"prev_status"`
	NewStatus  string  `json:"new_status"`
	Label      string  `json:"label"`
	Actor      string  `json:"actor"`
	CreatedAt  string  `json:"created_at"`
}

func (h *InvoicesHandler) history(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	logs, err := h.Engine.History(ctx, invoiceID)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	out := make([]StatusLogResp, 0, len(logs))
	for _, l := range logs {
		e := StatusLogResp{
			Seq:       l.Seq,
			NewStatus: string(l.NewStatus),
			Label:     invoices.DisplayLabel(l.Channel, l.NewStatus),
			Actor:     l.Actor,
			CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if l.PrevStatus != nil {
			s := string(*l.PrevStatus)
			e.PrevStatus = &s
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InvoicesHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Engine.ListProducts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
