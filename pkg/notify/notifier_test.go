package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	updates "github.com/goliatone/go-updates"
	"github.com/goliatone/go-updates/pkg/notify"
	"github.com/goliatone/go-updates/pkg/transition"
)

func collect[T any](t *testing.T, ch <-chan updates.Update[T], n int) []updates.Update[T] {
	t.Helper()
	out := make([]updates.Update[T], 0, n)
	for len(out) < n {
		select {
		case state, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d of %d states", len(out), n)
			}
			out = append(out, state)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for state %d of %d", len(out)+1, n)
		}
	}
	return out
}

func TestNotifierStartsNotLoaded(t *testing.T) {
	n := notify.New[int]()
	defer n.Close()

	if _, ok := n.Current().(updates.NotLoaded[int]); !ok {
		t.Fatalf("expected NotLoaded, got %T", n.Current())
	}
}

func TestNotifierWithInitial(t *testing.T) {
	seed := updates.Updated[int]{ID: 1, Value: 5, UpdatedAt: time.Now()}
	n := notify.New[int](notify.WithInitial[int](seed))
	defer n.Close()

	got, ok := n.Current().(updates.Updated[int])
	if !ok || got.Value != 5 {
		t.Fatalf("expected seeded state, got %#v", n.Current())
	}
}

func TestExecuteCommitsAndPublishesInOrder(t *testing.T) {
	n := notify.New[int]()
	defer n.Close()
	sub := n.Subscribe()
	defer sub.Cancel()

	producer := func(context.Context) (int, error) { return 42, nil }
	produced := n.Execute(context.Background(), producer)

	if len(produced) != 2 {
		t.Fatalf("expected 2 produced states, got %d", len(produced))
	}
	received := collect(t, sub.C, 2)
	if _, ok := received[0].(updates.Updating[int]); !ok {
		t.Fatalf("expected Updating first, got %T", received[0])
	}
	terminal, ok := received[1].(updates.Updated[int])
	if !ok || terminal.Value != 42 {
		t.Fatalf("expected Updated(42), got %#v", received[1])
	}

	current, ok := n.Current().(updates.Updated[int])
	if !ok || current.Value != 42 {
		t.Fatalf("cell must hold the terminal state, got %#v", n.Current())
	}
}

func TestExecuteSecondCallRefreshes(t *testing.T) {
	n := notify.New[int]()
	defer n.Close()

	n.Execute(context.Background(), func(context.Context) (int, error) { return 1, nil })
	produced := n.Execute(context.Background(), func(context.Context) (int, error) { return 2, nil })

	if len(produced) != 2 {
		t.Fatalf("expected refresh sequence, got %d states", len(produced))
	}
	refreshing, ok := produced[0].(updates.Refreshing[int])
	if !ok {
		t.Fatalf("expected Refreshing, got %T", produced[0])
	}
	if refreshing.Previous.Value != 1 {
		t.Fatalf("refresh must wrap the prior success, got %+v", refreshing)
	}
}

func TestExecuteCancelPreviousSupersedesInFlight(t *testing.T) {
	n := notify.New[int]()
	defer n.Close()

	release := make(chan struct{})
	firstDone := make(chan []updates.Update[int], 1)
	go func() {
		firstDone <- n.Execute(context.Background(), func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := n.Current().(updates.Updating[int]); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first attempt never became visible")
		}
		time.Sleep(time.Millisecond)
	}

	produced := n.Execute(context.Background(),
		func(context.Context) (int, error) { return 99, nil },
		updates.WithOverridePolicy[int](updates.OverrideCancelPrevious),
	)
	if len(produced) != 2 {
		t.Fatalf("override attempt should complete, got %d states", len(produced))
	}

	close(release)
	first := <-firstDone
	if len(first) != 1 {
		t.Fatalf("superseded attempt should stop after its transient, got %d states", len(first))
	}
	if got := n.Current().(updates.Updated[int]).Value; got != 99 {
		t.Fatalf("stale result must not win, got %d", got)
	}
}

func TestExecuteAppliesDefaultRunOptions(t *testing.T) {
	n := notify.New[int](notify.WithRunOptions[int](
		updates.WithExpireAfter[int](time.Hour),
	))
	defer n.Close()

	n.Execute(context.Background(), func(context.Context) (int, error) { return 1, nil })
	produced := n.Execute(context.Background(), func(context.Context) (int, error) { return 2, nil })

	if len(produced) != 0 {
		t.Fatalf("fresh value should not refresh, got %d states", len(produced))
	}
}

func TestSubscriptionDropsWhenBufferFull(t *testing.T) {
	n := notify.New[int](notify.WithBuffer[int](1))
	defer n.Close()
	sub := n.Subscribe()
	defer sub.Cancel()

	// One Execute emits two states into a one-slot buffer nobody reads.
	n.Execute(context.Background(), func(context.Context) (int, error) { return 1, nil })

	if got := sub.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped state, got %d", got)
	}
	received := collect(t, sub.C, 1)
	if _, ok := received[0].(updates.Updating[int]); !ok {
		t.Fatalf("buffered state should be the first emitted, got %T", received[0])
	}
}

func TestSubscriptionCancelStopsDelivery(t *testing.T) {
	n := notify.New[int]()
	defer n.Close()

	sub := n.Subscribe()
	sub.Cancel()
	sub.Cancel() // idempotent

	if _, ok := <-sub.C; ok {
		t.Fatalf("cancelled subscription channel must be closed")
	}

	n.Execute(context.Background(), func(context.Context) (int, error) { return 1, nil })
	if got := sub.Dropped(); got != 0 {
		t.Fatalf("cancelled subscription must not count drops, got %d", got)
	}
}

func TestCloseTearsDownSubscriptions(t *testing.T) {
	n := notify.New[int]()
	subA := n.Subscribe()
	subB := n.Subscribe()

	n.Close()
	n.Close() // idempotent

	for _, sub := range []*notify.Subscription[int]{subA, subB} {
		if _, ok := <-sub.C; ok {
			t.Fatalf("close must close subscriber channels")
		}
	}

	if produced := n.Execute(context.Background(), func(context.Context) (int, error) {
		t.Fatal("producer must not run on a closed notifier")
		return 0, nil
	}); produced != nil {
		t.Fatalf("closed notifier must produce nothing, got %d states", len(produced))
	}

	late := n.Subscribe()
	if _, ok := <-late.C; ok {
		t.Fatalf("subscribing after close must yield a closed channel")
	}
}

func TestNotifierEmitsLifecycleEvents(t *testing.T) {
	capture := &transition.CaptureHook{}
	emitter := transition.NewEmitter(transition.Hooks{capture}, transition.Config{
		Enabled: true,
		Channel: "profile",
	})
	n := notify.New[int](notify.WithEmitter[int](emitter))
	defer n.Close()

	n.Execute(context.Background(), func(context.Context) (int, error) { return 1, nil })

	events := capture.Recorded()
	if len(events) != 2 {
		t.Fatalf("expected 2 emitted events, got %d", len(events))
	}
	for _, event := range events {
		if event.Verb != transition.VerbProduced {
			t.Fatalf("unexpected verb %q", event.Verb)
		}
		if event.Channel != "profile" {
			t.Fatalf("expected configured channel, got %q", event.Channel)
		}
	}
	if events[0].State != "updating" || events[1].State != "updated" {
		t.Fatalf("unexpected event states: %+v", events)
	}
}

func TestExecuteFailurePublishesFailureState(t *testing.T) {
	n := notify.New[int]()
	defer n.Close()
	failure := errors.New("backend down")

	produced := n.Execute(context.Background(), func(context.Context) (int, error) {
		return 0, failure
	})

	if len(produced) != 2 {
		t.Fatalf("expected 2 states, got %d", len(produced))
	}
	failed, ok := n.Current().(updates.FailedUpdate[int])
	if !ok || !errors.Is(failed.Err, failure) {
		t.Fatalf("cell must hold the failure, got %#v", n.Current())
	}
}
