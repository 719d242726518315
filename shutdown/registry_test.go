package shutdown

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRegistry_RunsInPriorityOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	record := func(name string) Func {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	r.Register("logger", 90, record("logger"))
	r.Register("history", PriorityHistory, record("history"))
	r.Register("refiner", PriorityRefiner, record("refiner"))
	r.Register("history-2", PriorityHistory, record("history-2"))

	want := []string{"refiner", "history", "history-2", "logger"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("run order = %v, want %v", order, want)
	}
}

func TestRegistry_CollectsErrors(t *testing.T) {
	r := NewRegistry()
	errA := errors.New("a failed")
	ran := 0

	r.Register("a", 1, func(context.Context) error { ran++; return errA })
	r.Register("b", 2, func(context.Context) error { ran++; return nil })
	r.Register("c", 3, func(context.Context) error { ran++; return errors.New("c failed") })

	err := r.Run(context.Background())
	if ran != 3 {
		t.Errorf("ran %d functions, want 3", ran)
	}
	if !errors.Is(err, errA) {
		t.Fatalf("Run() error = %v, want it to wrap errA", err)
	}
	if !strings.Contains(err.Error(), "c: c failed") {
		t.Errorf("Run() error = %q, want named failure for c", err)
	}
}

type closer struct{ closed int }

func (c *closer) Close() error {
	c.closed++
	return nil
}

func TestRegistry_RunOnce(t *testing.T) {
	r := NewRegistry()
	c := &closer{}
	r.RegisterCloser("store", PriorityHistory, c)

	_ = r.Run(context.Background())
	_ = r.Run(context.Background())
	if c.closed != 1 {
		t.Errorf("Close called %d times, want 1", c.closed)
	}

	r.Register("late", 0, func(context.Context) error { return nil })
	if got := len(r.Names()); got != 1 {
		t.Errorf("late registration accepted, %d entries", got)
	}
}
