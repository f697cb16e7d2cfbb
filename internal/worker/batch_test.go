package worker

import (
	"errors"
	"testing"
)

func TestRunFuncs(t *testing.T) {
	tasks := []func() error{
		func() error { return nil },
		func() error { return errors.New("boom") },
		func() error { return nil },
	}

	results := RunFuncs(tasks, 2)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for _, r := range results {
		switch r.Index {
		case 0, 2:
			if r.Err != nil {
				t.Errorf("index %d: expected nil error, got %v", r.Index, r.Err)
			}
		case 1:
			if r.Err == nil {
				t.Errorf("index 1: expected error, got nil")
			}
		default:
			t.Errorf("unexpected index %d", r.Index)
		}
	}
}

func TestRunFuncs_Empty(t *testing.T) {
	results := RunFuncs(nil, 2)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestRunFuncs_PreservesIndexOrder(t *testing.T) {
	tasks := make([]func() error, 8)
	for i := range tasks {
		tasks[i] = func() error { return nil }
	}

	results := RunFuncs(tasks, 3)
	if len(results) != 8 {
		t.Fatalf("expected 8 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("expected result at position %d to carry Index %d, got %d", i, i, r.Index)
		}
	}
}
