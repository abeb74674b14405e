package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func newRunner() *Runner {
	return New(time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAddRejectsBadSpec(t *testing.T) {
	r := newRunner()
	if err := r.Add("bad", "every day", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if err := r.Add("five-field", "0 20 * * *", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for spec without seconds field")
	}
}

func TestAddRejectsDuplicateName(t *testing.T) {
	r := newRunner()
	noop := func(context.Context) error { return nil }
	if err := r.Add("rollover", "0 */5 * * * *", noop); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Add("rollover", "0 */5 * * * *", noop); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestRunNow(t *testing.T) {
	r := newRunner()
	var calls int32
	r.Add("backup", "0 0 3 * * *", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("storage offline")
	})

	if err := r.RunNow("backup"); err == nil || err.Error() != "storage offline" {
		t.Errorf("RunNow err = %v, want job error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err := r.RunNow("missing"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestScheduledJobRunsAndStops(t *testing.T) {
	r := newRunner()
	ran := make(chan struct{}, 10)
	r.Add("tick", "* * * * * *", func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	})

	r.Start()
	if r.Next("tick").IsZero() {
		t.Error("expected next run time after start")
	}

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}

func TestStopCancelsJobContext(t *testing.T) {
	r := newRunner()
	r.Add("wait", "0 0 0 1 1 *", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	errc := make(chan error, 1)
	go func() { errc <- r.RunNow("wait") }()

	r.Stop(context.Background())
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("job ignored cancellation")
	}
}

func TestNextInLocation(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	r := New(lima, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Add("warn", "0 0 20 * * *", func(context.Context) error { return nil })
	r.Start()
	defer r.Stop(context.Background())

	next := r.Next("warn").In(lima)
	if next.Hour() != 20 || next.Minute() != 0 {
		t.Errorf("next = %v, want 20:00 Lima time", next)
	}
}
