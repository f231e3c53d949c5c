package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestInterrupted_DistinctFromFailure(t *testing.T) {
	err := Interrupted(context.Canceled)
	if !IsInterrupted(err) {
		t.Fatalf("expected interrupted")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cause to unwrap")
	}
	if Interrupted(err) != err {
		t.Fatalf("double wrap")
	}
	if IsInterrupted(NewProviderError(FailureTransport, "p", "stream", errors.New("boom"))) {
		t.Fatalf("failure classified as interruption")
	}
	if IsInterrupted(context.Canceled) {
		t.Fatalf("bare context error must be classified explicitly")
	}
}

func TestClassify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("connection reset")
	if got := Classify(ctx, boom); got != boom {
		t.Fatalf("live ctx should pass error through, got %v", got)
	}
	cancel()
	if got := Classify(ctx, boom); !IsInterrupted(got) {
		t.Fatalf("cancelled ctx should classify as interrupted, got %v", got)
	}
	if Classify(ctx, nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestIsFailure_Wrapped(t *testing.T) {
	pe := NewProviderError(FailureRetriesExhausted, "openai", "generate", errors.New("5 attempts"))
	wrapped := fmt.Errorf("session: %w", pe)
	if !IsFailure(wrapped, FailureRetriesExhausted) {
		t.Fatalf("expected kind through wrap")
	}
	if IsFailure(wrapped, FailureNoModel) {
		t.Fatalf("wrong kind matched")
	}
	if pe.Error() != "openai generate: 5 attempts" {
		t.Fatalf("Error()=%q", pe.Error())
	}
}
