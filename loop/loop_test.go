package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(16)
	go l.Run(ctx)
	if !l.Wait(time.Second) {
		cancel()
		t.Fatal("loop didn't start running")
	}
	return l, cancel
}

func TestPostOrder(t *testing.T) {
	l, cancel := startLoop(t)
	defer cancel()

	ctx := context.Background()
	var got []int
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		if err := l.Post(ctx, func() {
			got = append(got, i)
			wg.Done()
		}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
	for i, n := range got {
		if i != n {
			t.Fatalf("%d at %d", n, i)
		}
	}
}

func TestDo(t *testing.T) {
	l, cancel := startLoop(t)
	defer cancel()

	ctx := context.Background()
	boom := errors.New("boom")
	if err := l.Do(ctx, func() error { return boom }); err != boom {
		t.Fatal(err)
	}
	if err := l.Do(ctx, func() error { panic("no") }); err == nil {
		t.Fatal("panic not reported")
	}
	// Still running after a panic.
	if err := l.Do(ctx, func() error { return nil }); err != nil {
		t.Fatal(err)
	}
}

func TestNotRunning(t *testing.T) {
	l := NewLoop(1)
	if err := l.Post(context.Background(), func() {}); err != ErrNotRunning {
		t.Fatal(err)
	}

	l, cancel := startLoop(t)
	if err := l.Run(context.Background()); err != ErrAlreadyRunning {
		t.Fatal(err)
	}
	cancel()
	deadline := time.Now().Add(time.Second)
	for l.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("still running")
		}
		time.Sleep(time.Millisecond)
	}
}
