package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForZeroDuration(t *testing.T) {
	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForCompletes(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = originalSleep }()

	if err := WaitFor(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForCanceledContext(t *testing.T) {
	originalSleep := sleep
	blocked := make(chan struct{})
	sleep = func(time.Duration) { <-blocked }
	defer func() {
		close(blocked)
		sleep = originalSleep
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitFor(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
