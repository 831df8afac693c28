package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"
	"github.com/yourorg/crypto-alerts/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fakeTriggerStore holds alerts in memory and enforces the same conditional
// commit as the database: the first commit per alert wins, later ones get
// ErrAlreadyTriggered.
type fakeTriggerStore struct {
	mu        sync.Mutex
	alerts    []model.Alert
	committed map[uuid.UUID]model.TriggerKind
	listErr   error
	commitErr error
}

func newFakeTriggerStore(alerts ...model.Alert) *fakeTriggerStore {
	return &fakeTriggerStore{
		alerts:    alerts,
		committed: make(map[uuid.UUID]model.TriggerKind),
	}
}

func (s *fakeTriggerStore) ListActiveUntriggered(ctx context.Context, symbol string) ([]model.Alert, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Alert
	for _, a := range s.alerts {
		if a.Symbol != symbol {
			continue
		}
		if _, done := s.committed[a.ID]; done {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeTriggerStore) CommitTrigger(ctx context.Context, alertID uuid.UUID, triggeredAt time.Time, price decimal.Decimal, kind model.TriggerKind) error {
	if s.commitErr != nil {
		return s.commitErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.committed[alertID]; done {
		return repository.ErrAlreadyTriggered
	}
	s.committed[alertID] = kind
	return nil
}

func (s *fakeTriggerStore) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []model.TriggerEvent
	err    error
}

func (n *fakeNotifier) PublishTrigger(ctx context.Context, event model.TriggerEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func makeAlert(symbol, min, max string) model.Alert {
	return model.Alert{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Symbol:   symbol,
		MinPrice: decimal.RequireFromString(min),
		MaxPrice: decimal.RequireFromString(max),
		IsActive: true,
	}
}

func makeSnapshot(symbol, price string) *model.PriceSnapshot {
	return &model.PriceSnapshot{
		Symbol:    symbol,
		Price:     decimal.RequireFromString(price),
		Timestamp: time.Now().UTC(),
		Source:    model.SourceBinance,
	}
}

func TestAlertEvaluator_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		wantFire bool
		wantKind model.TriggerKind
	}{
		{"at min boundary", "100", true, model.TriggerBelowMin},
		{"just below min", "99.99999999", true, model.TriggerBelowMin},
		{"inside range", "150", false, ""},
		{"just inside max", "199.99999999", false, ""},
		{"at max boundary", "200", true, model.TriggerAboveMax},
		{"above max", "250", true, model.TriggerAboveMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := makeAlert("BTC", "100", "200")
			store := newFakeTriggerStore(alert)
			evaluator := NewAlertEvaluator(store, nil, zap.NewNop())

			triggered, err := evaluator.Evaluate(context.Background(), makeSnapshot("BTC", tt.price))
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}

			if tt.wantFire {
				if len(triggered) != 1 || triggered[0] != alert.ID {
					t.Fatalf("triggered = %v, want [%s]", triggered, alert.ID)
				}
				if kind := store.committed[alert.ID]; kind != tt.wantKind {
					t.Errorf("committed kind = %q, want %q", kind, tt.wantKind)
				}
			} else {
				if len(triggered) != 0 {
					t.Errorf("triggered = %v, want none", triggered)
				}
				if store.commitCount() != 0 {
					t.Errorf("store has %d commits, want 0 (no-trigger cycle must not write)", store.commitCount())
				}
			}
		})
	}
}

func TestAlertEvaluator_TriggersAtMostOnce(t *testing.T) {
	alert := makeAlert("BTC", "40000", "60000")
	store := newFakeTriggerStore(alert)
	evaluator := NewAlertEvaluator(store, nil, zap.NewNop())

	snapshot := makeSnapshot("BTC", "61000")

	first, err := evaluator.Evaluate(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first evaluation triggered %d alerts, want 1", len(first))
	}

	// The alert is committed; later cycles with the same condition must not
	// re-fire it.
	second, err := evaluator.Evaluate(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second evaluation triggered %d alerts, want 0", len(second))
	}
	if store.commitCount() != 1 {
		t.Errorf("store has %d commits, want exactly 1", store.commitCount())
	}
}

func TestAlertEvaluator_ConcurrentEvaluationsCommitOnce(t *testing.T) {
	alert := makeAlert("ETH", "1000", "2000")

	// Every evaluation sees the alert as eligible; only the conditional
	// commit arbitrates. Exactly one evaluation may win.
	store := newFakeTriggerStore(alert)
	evaluator := NewAlertEvaluator(store, nil, zap.NewNop())
	snapshot := makeSnapshot("ETH", "2100")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			triggered, err := evaluator.Evaluate(context.Background(), snapshot)
			if err != nil {
				t.Errorf("Evaluate failed: %v", err)
				return
			}
			if len(triggered) > 0 {
				mu.Lock()
				wins += len(triggered)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d evaluations reported the trigger, want exactly 1", wins)
	}
	if store.commitCount() != 1 {
		t.Errorf("store has %d commits, want exactly 1", store.commitCount())
	}
}

func TestAlertEvaluator_OneCommitFailureDoesNotStopSiblings(t *testing.T) {
	broken := makeAlert("BTC", "40000", "60000")
	healthy := makeAlert("BTC", "45000", "55000")

	store := newFakeTriggerStore(broken, healthy)
	calls := 0
	wrapped := &failFirstStore{
		inner:     store,
		failWith:  errors.New("connection reset"),
		failCalls: 1,
		calls:     &calls,
	}
	evaluator := NewAlertEvaluator(wrapped, nil, zap.NewNop())

	triggered, err := evaluator.Evaluate(context.Background(), makeSnapshot("BTC", "61000"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if len(triggered) != 1 {
		t.Errorf("triggered %d alerts, want 1 (the sibling of the failed commit)", len(triggered))
	}
}

// failFirstStore fails the first N CommitTrigger calls, then delegates.
type failFirstStore struct {
	inner     *fakeTriggerStore
	failWith  error
	failCalls int
	calls     *int
}

func (s *failFirstStore) ListActiveUntriggered(ctx context.Context, symbol string) ([]model.Alert, error) {
	return s.inner.ListActiveUntriggered(ctx, symbol)
}

func (s *failFirstStore) CommitTrigger(ctx context.Context, alertID uuid.UUID, triggeredAt time.Time, price decimal.Decimal, kind model.TriggerKind) error {
	*s.calls++
	if *s.calls <= s.failCalls {
		return s.failWith
	}
	return s.inner.CommitTrigger(ctx, alertID, triggeredAt, price, kind)
}

func TestAlertEvaluator_NotifierFailureDoesNotUndoTrigger(t *testing.T) {
	alert := makeAlert("BTC", "40000", "60000")
	store := newFakeTriggerStore(alert)
	notifier := &fakeNotifier{err: errors.New("broker unreachable")}
	evaluator := NewAlertEvaluator(store, notifier, zap.NewNop())

	triggered, err := evaluator.Evaluate(context.Background(), makeSnapshot("BTC", "61000"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(triggered) != 1 {
		t.Errorf("triggered %d alerts, want 1 despite the notifier failure", len(triggered))
	}
	if store.commitCount() != 1 {
		t.Errorf("store has %d commits, want 1", store.commitCount())
	}
}

func TestAlertEvaluator_PublishesTriggerEvent(t *testing.T) {
	alert := makeAlert("ADA", "0.5", "1.5")
	store := newFakeTriggerStore(alert)
	notifier := &fakeNotifier{}
	evaluator := NewAlertEvaluator(store, notifier, zap.NewNop())

	snapshot := makeSnapshot("ADA", "0.25")
	if _, err := evaluator.Evaluate(context.Background(), snapshot); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("published %d events, want 1", len(notifier.events))
	}
	event := notifier.events[0]
	if event.AlertID != alert.ID || event.UserID != alert.UserID {
		t.Errorf("event identity = %s/%s, want %s/%s", event.AlertID, event.UserID, alert.ID, alert.UserID)
	}
	if event.Kind != model.TriggerBelowMin {
		t.Errorf("event kind = %q, want %q", event.Kind, model.TriggerBelowMin)
	}
	if !event.Price.Equal(snapshot.Price) {
		t.Errorf("event price = %s, want %s", event.Price, snapshot.Price)
	}
}

func TestAlertEvaluator_ListFailurePropagates(t *testing.T) {
	store := newFakeTriggerStore()
	store.listErr = errors.New("db down")
	evaluator := NewAlertEvaluator(store, nil, zap.NewNop())

	if _, err := evaluator.Evaluate(context.Background(), makeSnapshot("BTC", "100")); err == nil {
		t.Error("expected error when listing alerts fails")
	}
}
