package updates

import (
	"errors"
	"testing"
	"time"
)

var (
	errLeft  = errors.New("left failed")
	errRight = errors.New("right failed")
)

func add(a, b int) int { return a + b }

func TestCombineVariantTable(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	prevA := Updated[int]{ID: 11, Value: 1, UpdatedAt: base}
	prevB := Updated[int]{ID: 21, Value: 2, UpdatedAt: base.Add(time.Minute)}

	as := []Update[int]{
		NotLoaded[int]{},
		Updating[int]{ID: 12, StartedAt: base},
		Updated[int]{ID: 13, Value: 1, UpdatedAt: base},
		FailedUpdate[int]{ID: 14, Err: errLeft, FailedAt: base},
		Refreshing[int]{ID: 15, StartedAt: base, Previous: prevA},
		FailedRefresh[int]{ID: 16, Previous: prevA, Err: errLeft, FailedAt: base},
	}
	bs := []Update[int]{
		NotLoaded[int]{},
		Updating[int]{ID: 22, StartedAt: base},
		Updated[int]{ID: 23, Value: 2, UpdatedAt: base},
		FailedUpdate[int]{ID: 24, Err: errRight, FailedAt: base},
		Refreshing[int]{ID: 25, StartedAt: base, Previous: prevB},
		FailedRefresh[int]{ID: 26, Previous: prevB, Err: errRight, FailedAt: base},
	}

	// Rows are the left variant, columns the right variant, in the order
	// not_loaded, updating, updated, failed_update, refreshing,
	// failed_refresh. Asymmetric cells are intentional.
	expect := [6][6]string{
		{"not_loaded", "not_loaded", "not_loaded", "failed_update", "not_loaded", "failed_update"},
		{"updating", "updating", "updating", "failed_update", "updating", "failed_update"},
		{"not_loaded", "updating", "updated", "failed_update", "refreshing", "failed_refresh"},
		{"failed_update", "failed_update", "failed_update", "failed_update", "failed_update", "failed_update"},
		{"updating", "updating", "refreshing", "failed_update", "refreshing", "failed_refresh"},
		{"failed_update", "updating", "failed_refresh", "failed_update", "failed_refresh", "failed_refresh"},
	}

	for i, a := range as {
		for j, b := range bs {
			got := Combine(a, b, add)
			if name := StateName(got); name != expect[i][j] {
				t.Errorf("(%s, %s): got %s, want %s",
					StateName(a), StateName(b), name, expect[i][j])
			}
		}
	}
}

func TestCombineUpdatedPair(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	a := Updated[int]{ID: 0b1010, Value: 1, UpdatedAt: base}
	b := Updated[int]{ID: 0b0110, Value: 2, UpdatedAt: base.Add(time.Minute)}

	got, ok := Combine(a, b, add).(Updated[int])
	if !ok {
		t.Fatalf("expected Updated")
	}
	if got.ID != 0b1100 {
		t.Fatalf("composite id must be the XOR of both ids, got %b", got.ID)
	}
	if got.Value != 3 {
		t.Fatalf("expected combined value 3, got %d", got.Value)
	}
	if !got.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected later timestamp, got %v", got.UpdatedAt)
	}
}

func TestCombineFirstLoadFailureDominatesBothOrders(t *testing.T) {
	success := Updated[int]{ID: 2, Value: 7, UpdatedAt: time.Now()}
	failure := FailedUpdate[int]{ID: 4, Err: errLeft, FailedAt: time.Now()}

	left, ok := Combine[int, int, int](failure, success, add).(FailedUpdate[int])
	if !ok {
		t.Fatalf("(failed_update, updated) must fail")
	}
	if !errors.Is(left.Err, errLeft) || left.ID != 6 {
		t.Fatalf("unexpected left-dominant failure: %+v", left)
	}

	// The swapped order is a separate table cell, verified on its own.
	right, ok := Combine[int, int, int](success, failure, add).(FailedUpdate[int])
	if !ok {
		t.Fatalf("(updated, failed_update) must fail")
	}
	if !errors.Is(right.Err, errLeft) || right.ID != 6 {
		t.Fatalf("unexpected right-side failure: %+v", right)
	}
}

func TestCombineRefreshPairMergesPrevious(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	a := Refreshing[int]{
		ID:        8,
		StartedAt: base,
		Previous:  Updated[int]{ID: 1, Value: 10, UpdatedAt: base},
	}
	b := Refreshing[int]{
		ID:        16,
		StartedAt: base.Add(time.Second),
		Previous:  Updated[int]{ID: 2, Value: 20, UpdatedAt: base.Add(time.Minute)},
	}

	got, ok := Combine(a, b, add).(Refreshing[int])
	if !ok {
		t.Fatalf("expected Refreshing")
	}
	if got.ID != 24 {
		t.Fatalf("expected XOR id 24, got %d", got.ID)
	}
	if got.OptimisticValue != nil {
		t.Fatalf("no optimistic inputs, composite must not be optimistic")
	}
	if got.Previous.Value != 30 || got.Previous.ID != 3 {
		t.Fatalf("merged previous mismatch: %+v", got.Previous)
	}
	if !got.Previous.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("merged previous should keep the later timestamp")
	}
}

func TestCombineOptimisticPropagation(t *testing.T) {
	base := time.Now()

	t.Run("optimistic against confirmed", func(t *testing.T) {
		a := Updating[int]{ID: 1, OptimisticValue: Optimistic(1), StartedAt: base}
		b := Updated[int]{ID: 2, Value: 2, UpdatedAt: base}
		got := Combine[int, int, int](a, b, add).(Updating[int])
		if got.OptimisticValue == nil || *got.OptimisticValue != 3 {
			t.Fatalf("expected combined optimistic 3, got %+v", got.OptimisticValue)
		}
	})

	t.Run("no optimistic input stays nil", func(t *testing.T) {
		a := Updated[int]{ID: 1, Value: 1, UpdatedAt: base}
		b := Updating[int]{ID: 2, StartedAt: base}
		got := Combine[int, int, int](a, b, add).(Updating[int])
		if got.OptimisticValue != nil {
			t.Fatalf("expected nil optimistic, got %v", *got.OptimisticValue)
		}
	})

	t.Run("one side without any value stays nil", func(t *testing.T) {
		a := Updating[int]{ID: 1, OptimisticValue: Optimistic(1), StartedAt: base}
		b := Updating[int]{ID: 2, StartedAt: base}
		got := Combine[int, int, int](a, b, add).(Updating[int])
		if got.OptimisticValue != nil {
			t.Fatalf("expected nil optimistic, got %v", *got.OptimisticValue)
		}
	})
}

func TestCombineRefreshFailures(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	prevA := Updated[int]{ID: 1, Value: 10, UpdatedAt: base}
	prevB := Updated[int]{ID: 2, Value: 20, UpdatedAt: base}

	t.Run("refreshing absorbs the failed refresh error", func(t *testing.T) {
		a := Refreshing[int]{ID: 4, StartedAt: base, Previous: prevA}
		b := FailedRefresh[int]{ID: 8, Previous: prevB, Err: errRight, FailedAt: base}
		got := Combine(a, b, add).(FailedRefresh[int])
		if !errors.Is(got.Err, errRight) {
			t.Fatalf("expected the failing side's error, got %v", got.Err)
		}
		if got.Previous.Value != 30 {
			t.Fatalf("expected merged previous 30, got %d", got.Previous.Value)
		}
	})

	t.Run("failed refresh against not loaded degrades", func(t *testing.T) {
		a := FailedRefresh[int]{ID: 4, Previous: prevA, Err: errLeft, FailedAt: base}
		got := Combine[int, int, int](a, NotLoaded[int]{}, add).(FailedUpdate[int])
		if !errors.Is(got.Err, errLeft) || got.ID != 4 {
			t.Fatalf("unexpected degraded failure: %+v", got)
		}
	})

	t.Run("failed refresh keeps its error over a first-load failure", func(t *testing.T) {
		a := FailedRefresh[int]{ID: 4, Previous: prevA, Err: errLeft, FailedAt: base}
		b := FailedUpdate[int]{ID: 8, Err: errRight, FailedAt: base}
		got := Combine[int, int, int](a, b, add).(FailedUpdate[int])
		if !errors.Is(got.Err, errLeft) {
			t.Fatalf("richer failure's error should win, got %v", got.Err)
		}
	})

	t.Run("two failed refreshes keep the left error", func(t *testing.T) {
		a := FailedRefresh[int]{ID: 4, Previous: prevA, Err: errLeft, FailedAt: base}
		b := FailedRefresh[int]{ID: 8, Previous: prevB, Err: errRight, FailedAt: base.Add(time.Second)}
		got := Combine(a, b, add).(FailedRefresh[int])
		if !errors.Is(got.Err, errLeft) {
			t.Fatalf("left error should dominate, got %v", got.Err)
		}
		if got.Previous.Value != 30 {
			t.Fatalf("expected merged previous 30, got %d", got.Previous.Value)
		}
		if !got.FailedAt.Equal(base.Add(time.Second)) {
			t.Fatalf("expected later failure timestamp")
		}
	})
}

func TestCombineNilCombineValuesPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Combine[int, int, int](NotLoaded[int]{}, NotLoaded[int]{}, nil)
}
