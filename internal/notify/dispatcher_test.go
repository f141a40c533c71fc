package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/sitepulse/internal/domain"
)

type memChannel struct {
	mu    sync.Mutex
	sent  []domain.AlertPayload
	err   error
	block chan struct{}
}

func (m *memChannel) Send(ctx context.Context, ws domain.WorkspaceID, p domain.AlertPayload, a *domain.Attachment) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	return m.err
}

func (m *memChannel) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestDispatcher_DeliversAndDrainsOnClose(t *testing.T) {
	ch := &memChannel{}
	d := NewDispatcher(zap.NewNop(), ch, 2, 8, time.Second)
	for i := 0; i < 5; i++ {
		d.Dispatch("w1", downPayload(), nil)
	}
	d.Close()
	if ch.count() != 5 {
		t.Fatalf("want 5 sends after close, got %d", ch.count())
	}
	// dispatch after close is dropped, not a panic
	d.Dispatch("w1", downPayload(), nil)
	d.Close()
}

func TestDispatcher_DoesNotBlockCaller(t *testing.T) {
	ch := &memChannel{block: make(chan struct{})}
	d := NewDispatcher(zap.NewNop(), ch, 1, 1, time.Second)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Dispatch("w1", downPayload(), nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a stuck channel")
	}
	close(ch.block)
	d.Close()
}

func TestDispatcher_SendErrorIsSwallowed(t *testing.T) {
	ch := &memChannel{err: errors.New("webhook down")}
	d := NewDispatcher(zap.NewNop(), ch, 1, 4, time.Second)
	d.Dispatch("w1", downPayload(), nil)
	d.Close()
	if ch.count() != 1 {
		t.Fatalf("want 1 attempt, got %d", ch.count())
	}
}

func TestMulti_CombinesErrors(t *testing.T) {
	ok := &memChannel{}
	bad1 := &memChannel{err: errors.New("one")}
	bad2 := &memChannel{err: errors.New("two")}

	err := Multi{ok, nil, bad1, bad2}.Send(context.Background(), "", downPayload(), nil)
	if len(multierr.Errors(err)) != 2 {
		t.Fatalf("want 2 combined errors, got %v", err)
	}
	if ok.count() != 1 {
		t.Fatalf("healthy channel must still receive the alert")
	}
}
