package rpc_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/danhigham/tgcore/internal/domain"
	"github.com/danhigham/tgcore/internal/rpc"
	"github.com/danhigham/tgcore/internal/rpc/rpctest"
)

func newEngine(t *testing.T) (*rpc.Engine, *rpctest.Transport) {
	t.Helper()
	e := rpc.New(zaptest.NewLogger(t))
	tr := rpctest.New()
	e.Attach(tr)
	return e, tr
}

func TestEngine_NotInitialized(t *testing.T) {
	e := rpc.New(nil)
	_, err := e.Submit(context.Background(), domain.LoadChats{Limit: 10})
	if !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("Submit() error = %v, want ErrNotInitialized", err)
	}
}

func TestEngine_IDsStartAtOneAndIncrease(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		f, err := e.Submit(ctx, domain.GetChat{ChatID: int64(i)})
		if err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
		if i == 0 && f.ID() != 1 {
			t.Errorf("first ID = %d, want 1", f.ID())
		}
		if f.ID() <= last {
			t.Errorf("ID = %d, want > %d", f.ID(), last)
		}
		last = f.ID()
	}
	if e.Pending() != 5 {
		t.Errorf("Pending() = %d, want 5", e.Pending())
	}
}

func TestEngine_PermutedResponses(t *testing.T) {
	e, tr := newEngine(t)
	const n = 50

	type outcome struct {
		chatID int64
		got    int64
		err    error
	}
	results := make(chan outcome, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			res, err := e.Call(context.Background(), domain.GetChat{ChatID: chatID})
			o := outcome{chatID: chatID, err: err}
			if cr, ok := res.(domain.ChatResult); ok {
				o.got = cr.Chat.ID
			}
			results <- o
		}(int64(i + 1))
	}

	sent := make([]rpctest.Sent, 0, n)
	for i := 0; i < n; i++ {
		sent = append(sent, tr.Next(t))
	}

	for _, idx := range rand.Perm(n) {
		s := sent[idx]
		req := s.Request.(domain.GetChat)
		e.Resolve(domain.Response{ID: s.ID, Result: domain.ChatResult{Chat: domain.Chat{ID: req.ChatID}}})
	}

	wg.Wait()
	close(results)
	for o := range results {
		if o.err != nil {
			t.Errorf("chat %d: Call() error: %v", o.chatID, o.err)
			continue
		}
		if o.got != o.chatID {
			t.Errorf("chat %d: got response for chat %d", o.chatID, o.got)
		}
	}
	if e.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", e.Pending())
	}
}

func TestEngine_UnknownResponseIsNoop(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	f, err := e.Submit(ctx, domain.LoadChats{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}

	if e.Resolve(domain.Response{ID: 999, Result: domain.OK{}}) {
		t.Error("Resolve(unknown) = true, want false")
	}
	if e.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", e.Pending())
	}

	if !e.Resolve(domain.Response{ID: f.ID(), Result: domain.ChatIDs{IDs: []int64{7}}}) {
		t.Fatal("Resolve() = false, want true")
	}
	if e.Resolve(domain.Response{ID: f.ID(), Result: domain.OK{}}) {
		t.Error("duplicate Resolve() = true, want false")
	}

	res, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	ids, ok := res.(domain.ChatIDs)
	if !ok || len(ids.IDs) != 1 || ids.IDs[0] != 7 {
		t.Errorf("Wait() = %#v, want ChatIDs{7}", res)
	}
}

func TestEngine_ShutdownCancelsPending(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	const k = 5
	futures := make([]*rpc.Future, 0, k)
	for i := 0; i < k; i++ {
		f, err := e.Submit(ctx, domain.GetChat{ChatID: int64(i)})
		if err != nil {
			t.Fatal(err)
		}
		futures = append(futures, f)
	}

	e.Shutdown()
	e.Shutdown()

	for _, f := range futures {
		if _, err := f.Wait(ctx); !errors.Is(err, domain.ErrCancelled) {
			t.Errorf("future %d: Wait() error = %v, want ErrCancelled", f.ID(), err)
		}
	}
	if _, err := e.Submit(ctx, domain.LoadChats{}); !errors.Is(err, domain.ErrCancelled) {
		t.Errorf("Submit() after Shutdown() error = %v, want ErrCancelled", err)
	}
}

func TestEngine_BackendError(t *testing.T) {
	e, tr := newEngine(t)
	tr.OnSend(func(id int64, req domain.Request) {
		e.Resolve(domain.Response{ID: id, Err: &domain.BackendError{Code: 400, Message: "PHONE_CODE_INVALID"}})
	})

	_, err := e.Call(context.Background(), domain.CheckCode{Code: "12345"})
	if !errors.Is(err, domain.ErrBackendRejected) {
		t.Fatalf("Call() error = %v, want ErrBackendRejected", err)
	}
	var be *domain.BackendError
	if !errors.As(err, &be) || be.Message != "PHONE_CODE_INVALID" {
		t.Errorf("BackendError = %#v, want message PHONE_CODE_INVALID", be)
	}
}

func TestEngine_ResponseBeforeSubmitReturns(t *testing.T) {
	e, tr := newEngine(t)
	tr.OnSend(func(id int64, req domain.Request) {
		e.Resolve(domain.Response{ID: id})
	})

	res, err := e.Call(context.Background(), domain.CheckEncryptionKey{})
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if _, ok := res.(domain.OK); !ok {
		t.Errorf("Call() = %#v, want OK", res)
	}
}

func TestEngine_SendErrorForgetsRequest(t *testing.T) {
	e, tr := newEngine(t)
	tr.SetSendError(errors.New("boom"))

	if _, err := e.Submit(context.Background(), domain.LoadChats{}); err == nil {
		t.Fatal("Submit() error = nil, want send error")
	}
	if e.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", e.Pending())
	}
}

func TestFuture_WaitContextAbandons(t *testing.T) {
	e, _ := newEngine(t)

	f, err := e.Submit(context.Background(), domain.LoadChats{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want deadline exceeded", err)
	}
	if e.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", e.Pending())
	}
	if e.Resolve(domain.Response{ID: f.ID()}) {
		t.Error("late Resolve() = true, want false")
	}
}
