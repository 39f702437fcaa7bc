package telegram

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/danhigham/tgcore/internal/domain"
)

type recorder chan domain.Incoming

func (r recorder) next(t *testing.T) domain.Incoming {
	t.Helper()
	select {
	case m := <-r:
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for backend message")
		return nil
	}
}

func (r recorder) phase(t *testing.T, want domain.AuthPhase) {
	t.Helper()
	m := r.next(t)
	u, ok := m.(domain.AuthorizationUpdate)
	if !ok || u.Phase != want {
		t.Fatalf("got %#v, want phase %v", m, want)
	}
}

func (r recorder) response(t *testing.T, id int64) domain.Response {
	t.Helper()
	m := r.next(t)
	resp, ok := m.(domain.Response)
	if !ok || resp.ID != id {
		t.Fatalf("got %#v, want response %d", m, id)
	}
	return resp
}

func startBackend(t *testing.T) (*Backend, recorder, <-chan error) {
	t.Helper()
	rec := make(recorder, 16)
	b := NewBackend(func(m domain.Incoming) { rec <- m }, zaptest.NewLogger(t))
	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()
	rec.phase(t, domain.PhaseWaitParameters)
	return b, rec, done
}

func waitStopped(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return")
	}
}

func TestBackend_RejectsBeforeParameters(t *testing.T) {
	b, rec, done := startBackend(t)
	ctx := context.Background()

	if err := b.Send(ctx, 1, domain.SetParameters{APIHash: "x"}); err != nil {
		t.Fatal(err)
	}
	if resp := rec.response(t, 1); resp.Err == nil || resp.Err.Message != "API_ID_INVALID" {
		t.Errorf("response = %+v, want API_ID_INVALID", resp)
	}

	b.Send(ctx, 2, domain.LoadChats{Limit: 10})
	if resp := rec.response(t, 2); resp.Err == nil || resp.Err.Code != 401 {
		t.Errorf("response = %+v, want code 401", resp)
	}

	b.Send(ctx, 3, domain.CheckEncryptionKey{})
	if resp := rec.response(t, 3); resp.Err == nil || resp.Err.Message != "PARAMETERS_REQUIRED" {
		t.Errorf("response = %+v, want PARAMETERS_REQUIRED", resp)
	}

	b.Send(ctx, 4, domain.Close{})
	rec.phase(t, domain.PhaseClosing)
	if resp := rec.response(t, 4); resp.Err != nil {
		t.Errorf("close response error: %v", resp.Err)
	}
	rec.phase(t, domain.PhaseClosed)
	waitStopped(t, done)
}

func TestBackend_CloseStopsRun(t *testing.T) {
	b, _, done := startBackend(t)

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	waitStopped(t, done)

	if err := b.Send(context.Background(), 1, domain.LoadChats{Limit: 1}); err == nil {
		t.Error("Send() after Close() succeeded, want error")
	}
}

func TestBackend_QueuedAfterCloseRejected(t *testing.T) {
	closing := make(chan struct{})
	release := make(chan struct{})
	rec := make(recorder, 16)
	b := NewBackend(func(m domain.Incoming) {
		if u, ok := m.(domain.AuthorizationUpdate); ok && u.Phase == domain.PhaseClosing {
			close(closing)
			<-release
		}
		rec <- m
	}, zaptest.NewLogger(t))
	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()
	rec.phase(t, domain.PhaseWaitParameters)

	ctx := context.Background()
	if err := b.Send(ctx, 1, domain.Close{}); err != nil {
		t.Fatal(err)
	}
	<-closing
	if err := b.Send(ctx, 2, domain.LoadChats{Limit: 5}); err != nil {
		t.Fatalf("Send() while closing: %v", err)
	}
	close(release)

	rec.phase(t, domain.PhaseClosing)
	if resp := rec.response(t, 1); resp.Err != nil {
		t.Errorf("close response error: %v", resp.Err)
	}
	rec.phase(t, domain.PhaseClosed)
	resp := rec.response(t, 2)
	if resp.Err == nil || resp.Err.Code != 500 || resp.Err.Message != "CLOSED" {
		t.Errorf("response = %+v, want 500 CLOSED", resp)
	}
	waitStopped(t, done)

	select {
	case m := <-rec:
		t.Errorf("unexpected message after stop: %#v", m)
	default:
	}
}
