// Package collaborators holds the two external boundaries the core
// depends on but never implements directly (spec.md §6): the AI worker
// that turns a chat message into a response, and the payment provider
// that activates subscriptions. Both are treated as opaque; this
// package defines the call shape, the retry/timeout policy, the local
// fallback path, JSON-over-HTTP clients for both boundaries, and the
// persistence of subscription state.
package collaborators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	balerrors "github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/protocol"
	"github.com/balancechain/core/internal/store"
)

// TurnRequest is the AI worker's input shape (spec.md §6).
type TurnRequest struct {
	Text      string   `json:"text"`
	ChatID    string   `json:"chatId"`
	History   []string `json:"history"`
	TurnIndex int      `json:"turn_index"`
}

// Bubble is one rendered reply fragment.
type Bubble struct {
	Text string `json:"text"`
}

// Final carries the worker's terminal decision for a session, if this
// turn concluded it.
type Final struct {
	Decision   string `json:"decision"`
	NextAction string `json:"next_action"`
}

// TurnResponse is the AI worker's output shape (spec.md §6).
type TurnResponse struct {
	Bubbles []Bubble       `json:"bubbles"`
	Final   *Final         `json:"final,omitempty"`
	State   map[string]any `json:"state,omitempty"`
}

// AIWorker is the narrow interface the core calls through — never a
// concrete HTTP client directly, so a test double can stand in without
// a network (spec.md §5 "narrow ... interface").
type AIWorker interface {
	Turn(ctx context.Context, req TurnRequest) (TurnResponse, error)
}

// HTTPAIWorker calls a JSON HTTP endpoint for each turn. There is no
// retry-capable HTTP client in the dependency set this module draws
// from (DESIGN.md), so the retry loop is hand-rolled over net/http.
type HTTPAIWorker struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	Client     *http.Client
	Logger     *zap.Logger
}

// NewHTTPAIWorker constructs a worker client from config values,
// defaulting to spec.md §6's fixed policy (30s timeout, 3 retries).
func NewHTTPAIWorker(url string, timeout time.Duration, maxRetries int, logger *zap.Logger) *HTTPAIWorker {
	if timeout <= 0 {
		timeout = protocol.AIWorkerTimeout
	}
	if maxRetries <= 0 {
		maxRetries = protocol.AIWorkerMaxRetries
	}
	return &HTTPAIWorker{
		URL:        url,
		Timeout:    timeout,
		MaxRetries: maxRetries,
		Client:     &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// Turn posts req and decodes the worker's response, retrying up to
// MaxRetries times on transport failure. The caller is expected to
// fall back locally if Turn ultimately errors (spec.md §6).
func (w *HTTPAIWorker) Turn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return TurnResponse{}, balerrors.Internal(fmt.Sprintf("collaborators: marshal turn request: %v", err))
	}

	var lastErr error
	for attempt := 0; attempt <= w.MaxRetries; attempt++ {
		if attempt > 0 {
			w.Logger.Warn("ai worker retry",
				zap.Int("attempt", attempt),
				zap.String("chatId", req.ChatID),
				zap.Error(lastErr))
		}

		resp, err := w.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}

	return TurnResponse{}, balerrors.Transport("ai worker call failed", lastErr)
}

func (w *HTTPAIWorker) doOnce(ctx context.Context, body []byte) (TurnResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return TurnResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(httpReq)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return TurnResponse{}, fmt.Errorf("worker status %d: %s", resp.StatusCode, raw)
	}

	var out TurnResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return TurnResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// FallbackTurn produces the local response substituted when the AI
// worker is unreachable after retries (spec.md §6 "on failure, a local
// fallback response is substituted and no chain side effect is
// blocked"). It never errors.
func FallbackTurn(req TurnRequest) TurnResponse {
	return TurnResponse{
		Bubbles: []Bubble{{Text: "I'm having trouble reaching the assistant right now. Please try again shortly."}},
	}
}

// TurnWithFallback calls worker.Turn and substitutes FallbackTurn on
// any error, logging the failure but never propagating it — a turn
// request never blocks a chain commit.
func TurnWithFallback(ctx context.Context, worker AIWorker, req TurnRequest, logger *zap.Logger) TurnResponse {
	resp, err := worker.Turn(ctx, req)
	if err != nil {
		logger.Error("ai worker failed, using local fallback",
			zap.String("chatId", req.ChatID), zap.Error(err))
		return FallbackTurn(req)
	}
	return resp
}

// PaymentActivation is what a payment provider reports back after a
// successful purchase or renewal (spec.md §6).
type PaymentActivation struct {
	HID           string
	PlanID        string
	Provider      string
	TransactionID string
	ExpiresAt     int64
	AutoRenew     bool
}

// PaymentProvider is opaque to the core (spec.md §6): whatever the
// concrete implementation does to talk to a billing system, this is
// the only shape the rest of the service depends on.
type PaymentProvider interface {
	Activate(ctx context.Context, hid, planID string, autoRenew bool) (PaymentActivation, error)
}

// HTTPPaymentProvider calls a JSON HTTP billing endpoint, the same
// shape as HTTPAIWorker but without a retry loop: an ambiguous retry
// on a purchase call risks a double charge, so a single attempt is
// correct here and the caller surfaces the failure to the client
// instead.
type HTTPPaymentProvider struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPPaymentProvider constructs a payment provider client.
func NewHTTPPaymentProvider(url string, timeout time.Duration) *HTTPPaymentProvider {
	if timeout <= 0 {
		timeout = protocol.AIWorkerTimeout
	}
	return &HTTPPaymentProvider{
		URL:     url,
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

type paymentActivateRequest struct {
	HID       string `json:"hid"`
	PlanID    string `json:"planId"`
	AutoRenew bool   `json:"autoRenew"`
}

// Activate posts the activation request and decodes the provider's
// response into a PaymentActivation.
func (p *HTTPPaymentProvider) Activate(ctx context.Context, hid, planID string, autoRenew bool) (PaymentActivation, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	body, err := json.Marshal(paymentActivateRequest{HID: hid, PlanID: planID, AutoRenew: autoRenew})
	if err != nil {
		return PaymentActivation{}, balerrors.Internal(fmt.Sprintf("collaborators: marshal activate request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return PaymentActivation{}, balerrors.Transport("payment provider request build failed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return PaymentActivation{}, balerrors.Transport("payment provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return PaymentActivation{}, balerrors.Transport("payment provider activation failed", fmt.Errorf("status %d: %s", resp.StatusCode, raw))
	}

	var out PaymentActivation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PaymentActivation{}, balerrors.Transport("payment provider response decode failed", err)
	}
	return out, nil
}

// Subscriptions persists the activation state a PaymentProvider
// produces, keyed by identity (spec.md §6 "only subscription state ...
// is persisted via meta").
type Subscriptions struct {
	store *store.Store
}

// NewSubscriptions constructs a Subscriptions gateway.
func NewSubscriptions(s *store.Store) *Subscriptions {
	return &Subscriptions{store: s}
}

// Activate runs the provider's activation call and persists the
// resulting subscription state.
func (s *Subscriptions) Activate(ctx context.Context, provider PaymentProvider, hid, planID string, autoRenew bool) (*store.SubscriptionRow, error) {
	act, err := provider.Activate(ctx, hid, planID, autoRenew)
	if err != nil {
		return nil, balerrors.Transport("payment provider activation failed", err)
	}

	row := &store.SubscriptionRow{
		HID:           act.HID,
		PlanID:        act.PlanID,
		Provider:      act.Provider,
		TransactionID: act.TransactionID,
		ExpiresAt:     act.ExpiresAt,
		ActivatedAt:   time.Now().UnixMilli(),
		AutoRenew:     act.AutoRenew,
	}
	if err := s.store.UpsertSubscription(ctx, row); err != nil {
		return nil, balerrors.DBError(err)
	}
	return row, nil
}

// Current returns hid's subscription, or nil if none exists.
func (s *Subscriptions) Current(ctx context.Context, hid string) (*store.SubscriptionRow, error) {
	row, err := s.store.GetSubscription(ctx, hid)
	if err != nil {
		return nil, balerrors.DBError(err)
	}
	return row, nil
}

// Active reports whether hid's subscription, if any, has not yet
// expired as of now.
func Active(row *store.SubscriptionRow, now time.Time) bool {
	if row == nil {
		return false
	}
	return row.ExpiresAt > now.UnixMilli()
}
