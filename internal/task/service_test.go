package task

import (
	"context"
	"testing"

	xerrors "PQ-Bitcoin/internal/errors"
	"PQ-Bitcoin/internal/zkvm"
)

type staticCatalog map[string]bool

func (c staticCatalog) Lookup(name string) (zkvm.Program, bool) {
	return nil, c[name]
}

type failingProducer struct{}

func (failingProducer) Publish(context.Context, string) error {
	return xerrors.New(xerrors.CodeQueueFailure, "broker unavailable")
}

func (failingProducer) Close() error { return nil }

func TestServiceSubmitValidation(t *testing.T) {
	ctx := context.Background()
	service := NewService(NewMemoryStore(), NewMemoryQueue(4), 3, WithCatalog(staticCatalog{"polynomial": true}))

	cases := []Request{
		{Program: ""},
		{Program: "unknown"},
		{Program: "polynomial", Mode: "simulate"},
	}
	for _, req := range cases {
		if _, err := service.Submit(ctx, req); xerrors.CodeOf(err) != CodeTaskValidation {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestServiceSubmitIsIdempotentByID(t *testing.T) {
	ctx := context.Background()
	queue := NewMemoryQueue(4)
	service := NewService(NewMemoryStore(), queue, 3)

	req := polynomialRequest()
	req.ID = "fixed"
	first, err := service.Submit(ctx, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.Mode != ModeExecute || first.Status != StatusPending || first.MaxRetries != 3 {
		t.Fatalf("unexpected task: %+v", first)
	}
	second, err := service.Submit(ctx, req)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.ID != first.ID || queue.Len() != 1 {
		t.Fatalf("duplicate submission was queued again: %+v, queue=%d", second, queue.Len())
	}

	generated, err := service.Submit(ctx, Request{Program: "polynomial"})
	if err != nil {
		t.Fatalf("submit without id: %v", err)
	}
	if generated.ID == "" || generated.Stdin == nil {
		t.Fatalf("unexpected generated task: %+v", generated)
	}
}

func TestServiceSubmitPublishFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	service := NewService(store, failingProducer{}, 3)

	req := polynomialRequest()
	req.ID = "unpublished"
	if _, err := service.Submit(ctx, req); xerrors.CodeOf(err) != CodeTaskPublish {
		t.Fatalf("expected publish error, got %v", err)
	}
	task, err := store.Get(ctx, "unpublished")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if task.Status != StatusFailed || !task.Terminal {
		t.Fatalf("unpublished task should be terminal: %+v", task)
	}
}

func TestServiceUninitialised(t *testing.T) {
	service := NewService(nil, nil, 0)
	if _, err := service.Get(context.Background(), "x"); xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.Submit(context.Background(), polynomialRequest()); xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("unexpected error: %v", err)
	}
}
