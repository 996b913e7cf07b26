package timers

import (
	"context"
	"testing"
	"time"
)

func startTimers(t *testing.T, max int) (*Timers, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ts := NewTimers(max)
	go ts.Run(ctx)
	if !ts.Wait(time.Second) {
		cancel()
		t.Fatal("timers didn't start running")
	}
	return ts, cancel
}

func TestTimersBasic(t *testing.T) {
	ts, cancel := startTimers(t, 10)
	defer cancel()

	firings := make(chan string, 16)
	f := func(_ context.Context, t *Timer) {
		firings <- t.Id
	}

	add := func(id string, d time.Duration) {
		if err := ts.Add(&Timer{Id: id, At: time.Now().Add(d), F: f}); err != nil {
			t.Fatal(err)
		}
	}

	add("3", 300*time.Millisecond)
	add("2", 200*time.Millisecond)
	add("1", 50*time.Millisecond)
	ts.Rem("2")
	add("5", 450*time.Millisecond)
	add("4", 350*time.Millisecond)
	ts.Rem("5")
	add("6", 600*time.Millisecond)

	if err := ts.Add(&Timer{Id: "6", At: time.Now(), F: f}); err != ErrIdExists {
		t.Fatal(err)
	}
	if err := ts.Rem("nope"); err != ErrNotFound {
		t.Fatal(err)
	}

	want := []string{"1", "3", "4", "6"}
	timeout := time.After(5 * time.Second)
	for i, expect := range want {
		select {
		case <-timeout:
			t.Fatalf("timeout waiting for %s", expect)
		case id := <-firings:
			if id != expect {
				t.Fatalf("expected %s but got %s at %d", expect, id, i)
			}
		}
	}
	select {
	case id := <-firings:
		t.Fatalf("unexpected firing %s", id)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRemoveLast(t *testing.T) {
	ts, cancel := startTimers(t, 10)
	defer cancel()

	fired := make(chan string, 1)
	ts.Add(&Timer{
		Id: "only",
		At: time.Now().Add(50 * time.Millisecond),
		F:  func(_ context.Context, t *Timer) { fired <- t.Id },
	})
	if err := ts.Rem("only"); err != nil {
		t.Fatal(err)
	}
	select {
	case id := <-fired:
		t.Fatalf("removed timer %s fired", id)
	case <-time.After(200 * time.Millisecond):
	}
	if n := len(ts.Pending()); n != 0 {
		t.Fatal(n)
	}
}

func TestTooMany(t *testing.T) {
	ts, cancel := startTimers(t, 2)
	defer cancel()
	f := func(context.Context, *Timer) {}
	at := time.Now().Add(time.Hour)
	ts.Add(&Timer{Id: "a", At: at, F: f})
	ts.Add(&Timer{Id: "b", At: at, F: f})
	if err := ts.Add(&Timer{Id: "c", At: at, F: f}); err != ErrTooMany {
		t.Fatal(err)
	}
}

func TestNotRunning(t *testing.T) {
	ts := NewTimers(1)
	if err := ts.Add(&Timer{Id: "a"}); err != ErrNotRunning {
		t.Fatal(err)
	}
}

func TestCron(t *testing.T) {
	ts, cancel := startTimers(t, 10)
	defer cancel()

	if err := ts.Add(&Timer{Id: "bad", Cron: "not a cron"}); err == nil {
		t.Fatal("should have failed")
	}

	fired := make(chan time.Time, 4)
	err := ts.Add(&Timer{
		Id:   "tick",
		Cron: "* * * * * * *",
		F:    func(_ context.Context, t *Timer) { fired <- t.Executed },
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(3 * time.Second):
			t.Fatalf("cron timer did not fire (%d)", i)
		}
	}
}

func TestCronNext(t *testing.T) {
	from := time.Date(2019, 3, 1, 10, 0, 0, 0, time.UTC)
	next, err := CronNext("0 30 * * * * *", from)
	if err != nil {
		t.Fatal(err)
	}
	if want := from.Add(30 * time.Minute); !next.Equal(want) {
		t.Fatal(next)
	}
}
