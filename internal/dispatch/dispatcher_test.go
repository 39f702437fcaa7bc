package dispatch_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/danhigham/tgcore/internal/dispatch"
	"github.com/danhigham/tgcore/internal/domain"
)

type recorder struct {
	mu        sync.Mutex
	responses []domain.Response
	phases    []domain.AuthPhase
}

func (r *recorder) Resolve(resp domain.Response) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	return true
}

func (r *recorder) OnAuthorizationUpdate(phase domain.AuthPhase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

type bogus struct{ domain.Incoming }

func TestDispatcher_Routes(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec, rec, zaptest.NewLogger(t))

	d.OnMessage(domain.Response{ID: 3, Result: domain.OK{}})
	d.OnMessage(domain.AuthorizationUpdate{Phase: domain.PhaseWaitCode})
	d.OnMessage(domain.NewChat{Chat: domain.Chat{ID: 1}})

	if len(rec.responses) != 1 || rec.responses[0].ID != 3 {
		t.Errorf("responses = %v, want one with ID 3", rec.responses)
	}
	if len(rec.phases) != 1 || rec.phases[0] != domain.PhaseWaitCode {
		t.Errorf("phases = %v, want [wait_code]", rec.phases)
	}
	if d.Backlog() != 1 {
		t.Errorf("Backlog() = %d, want 1", d.Backlog())
	}
}

func TestDispatcher_AuthUpdateHandledBeforeReturn(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec, rec, nil)

	d.OnMessage(domain.AuthorizationUpdate{Phase: domain.PhaseReady})
	d.OnMessage(domain.NewChat{Chat: domain.Chat{ID: 1}})

	u, err := d.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := u.(domain.NewChat); !ok {
		t.Fatalf("Next() = %T, want NewChat", u)
	}
	if len(rec.phases) != 1 {
		t.Errorf("phases = %v, want ready seen before the update was consumed", rec.phases)
	}
}

func TestDispatcher_PreservesOrder(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec, rec, nil)

	for i := int64(1); i <= 100; i++ {
		d.OnMessage(domain.ChatTitle{ChatID: i, Title: "t"})
	}
	d.Close()

	var want int64 = 1
	for u := range d.Updates(context.Background()) {
		ct := u.(domain.ChatTitle)
		if ct.ChatID != want {
			t.Fatalf("update chat = %d, want %d", ct.ChatID, want)
		}
		want++
	}
	if want != 101 {
		t.Errorf("consumed %d updates, want 100", want-1)
	}
}

func TestDispatcher_DropsMalformed(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec, rec, zaptest.NewLogger(t))

	d.OnMessage(nil)
	d.OnMessage(domain.Response{ID: 0})
	d.OnMessage(bogus{})
	d.OnMessage(&domain.Response{ID: 1})

	if len(rec.responses) != 0 {
		t.Errorf("responses = %v, want none", rec.responses)
	}
	if d.Backlog() != 0 {
		t.Errorf("Backlog() = %d, want 0", d.Backlog())
	}
}

func TestDispatcher_CloseEndsSequence(t *testing.T) {
	rec := &recorder{}
	d := dispatch.New(rec, rec, nil)

	d.OnMessage(domain.NewChat{Chat: domain.Chat{ID: 1}})
	d.Close()
	d.OnMessage(domain.NewChat{Chat: domain.Chat{ID: 2}})

	ctx := context.Background()
	if _, err := d.Next(ctx); err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if _, err := d.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}
