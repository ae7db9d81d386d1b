package collaborators

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/balancechain/core/internal/store"
)

type fakeWorker struct {
	resp TurnResponse
	err  error
}

func (f fakeWorker) Turn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	return f.resp, f.err
}

func TestTurnWithFallback_ReturnsWorkerResponseOnSuccess(t *testing.T) {
	want := TurnResponse{Bubbles: []Bubble{{Text: "hi"}}}
	worker := fakeWorker{resp: want}
	got := TurnWithFallback(context.Background(), worker, TurnRequest{ChatID: "c1"}, zap.NewNop())
	if len(got.Bubbles) != 1 || got.Bubbles[0].Text != "hi" {
		t.Errorf("expected worker response to pass through, got %+v", got)
	}
}

func TestTurnWithFallback_SubstitutesFallbackOnError(t *testing.T) {
	worker := fakeWorker{err: errors.New("boom")}
	got := TurnWithFallback(context.Background(), worker, TurnRequest{ChatID: "c1"}, zap.NewNop())
	if len(got.Bubbles) == 0 {
		t.Fatal("expected fallback bubbles, got none")
	}
	if got.Final != nil {
		t.Error("expected fallback response to carry no final decision")
	}
}

func TestFallbackTurn_NeverErrors(t *testing.T) {
	resp := FallbackTurn(TurnRequest{ChatID: "c1", Text: "hello"})
	if len(resp.Bubbles) != 1 {
		t.Errorf("expected exactly one fallback bubble, got %d", len(resp.Bubbles))
	}
}

func TestActive_NilSubscriptionIsInactive(t *testing.T) {
	if Active(nil, time.Now()) {
		t.Error("expected nil subscription to be inactive")
	}
}

func TestActive_ExpiresAtInFuture(t *testing.T) {
	now := time.Now()
	row := &store.SubscriptionRow{ExpiresAt: now.Add(time.Hour).UnixMilli()}
	if !Active(row, now) {
		t.Error("expected future expiry to be active")
	}
}

func TestActive_ExpiresAtInPast(t *testing.T) {
	now := time.Now()
	row := &store.SubscriptionRow{ExpiresAt: now.Add(-time.Hour).UnixMilli()}
	if Active(row, now) {
		t.Error("expected past expiry to be inactive")
	}
}
