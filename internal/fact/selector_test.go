package fact

import (
	"context"
	"testing"

	"github.com/ppiankov/convoengine/internal/llmprovider"
	"github.com/ppiankov/convoengine/internal/state"
)

type stubLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Complete(ctx context.Context, req llmprovider.Request) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubLLM) IsAvailable(ctx context.Context) bool { return true }

// TestSelector_FiltersOpinions covers spec scenario 2: a batch of ten
// sentences containing two verifiable claims and eight opinions, with
// max_claims_per_batch=2, must enqueue exactly those two claims.
func TestSelector_FiltersOpinions(t *testing.T) {
	llm := &stubLLM{response: `{"selected_claims": [
		{"claim": "The Moon landing occurred in 1969", "reason": "verifiable historical fact"},
		{"claim": "Water boils at 100 °C at sea level", "reason": "verifiable scientific fact"}
	]}`}
	core := state.New(100, 10)
	selector := NewSelector(llm, core, nil, 2)

	batch := []string{
		"The Moon landing occurred in 1969",
		"I think pizza is the best food",
		"Water boils at 100 °C at sea level",
		"Don't you agree that dogs are great?",
		"What time is it",
		"Hello there",
		"This movie was kind of okay I guess",
		"Maybe it will rain tomorrow",
		"That's such a vague thing to say",
		"Cool, cool, cool",
	}

	if err := selector.SelectFromBatch(context.Background(), batch); err != nil {
		t.Fatalf("SelectFromBatch returned error: %v", err)
	}

	stats := core.GetStats()
	if stats.FactQueueDepth != 2 {
		t.Fatalf("expected exactly 2 claims enqueued, got %d", stats.FactQueueDepth)
	}

	first, err := core.DequeueClaim(context.Background())
	if err != nil || first != "The Moon landing occurred in 1969" {
		t.Errorf("unexpected first claim: %q, err=%v", first, err)
	}
}

func TestSelector_EmptySelectionEnqueuesNothing(t *testing.T) {
	llm := &stubLLM{response: `{"selected_claims": []}`}
	core := state.New(100, 10)
	selector := NewSelector(llm, core, nil, 2)

	if err := selector.SelectFromBatch(context.Background(), []string{"Hello", "How are you?"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := core.GetStats(); stats.FactQueueDepth != 0 {
		t.Fatalf("expected zero enqueues, got %d", stats.FactQueueDepth)
	}
}

func TestSelector_EmptyBatchIsNoOp(t *testing.T) {
	llm := &stubLLM{}
	core := state.New(100, 10)
	selector := NewSelector(llm, core, nil, 2)

	if err := selector.SelectFromBatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.calls != 0 {
		t.Errorf("expected no LLM call for an empty batch, got %d calls", llm.calls)
	}
}

func TestSelector_MalformedJSONIsTreatedAsEmptySelection(t *testing.T) {
	llm := &stubLLM{response: "not json"}
	core := state.New(100, 10)
	selector := NewSelector(llm, core, nil, 2)

	if err := selector.SelectFromBatch(context.Background(), []string{"a claim maybe"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := core.GetStats(); stats.FactQueueDepth != 0 {
		t.Fatalf("expected zero enqueues on malformed response, got %d", stats.FactQueueDepth)
	}
}

func TestSelector_RespectsMaxClaimsPerBatch(t *testing.T) {
	llm := &stubLLM{response: `{"selected_claims": [
		{"claim": "Claim one"},
		{"claim": "Claim two"},
		{"claim": "Claim three"}
	]}`}
	core := state.New(100, 10)
	selector := NewSelector(llm, core, nil, 2)

	if err := selector.SelectFromBatch(context.Background(), []string{"irrelevant"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := core.GetStats(); stats.FactQueueDepth != 2 {
		t.Fatalf("expected cap at max_claims_per_batch=2, got %d", stats.FactQueueDepth)
	}
}
