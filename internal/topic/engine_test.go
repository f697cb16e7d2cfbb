package topic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/convoengine/internal/llmprovider"
	"github.com/ppiankov/convoengine/internal/observer"
	"github.com/ppiankov/convoengine/internal/search"
	"github.com/ppiankov/convoengine/internal/state"
)

// stubLLM returns a fixed response (or the next of a sequence) for
// every Complete call, recording how many times it was invoked.
type stubLLM struct {
	mu        sync.Mutex
	responses []string
	calls     int
	err       error
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Complete(ctx context.Context, req llmprovider.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return s.responses[idx], nil
}

func (s *stubLLM) IsAvailable(ctx context.Context) bool { return true }

// stubSearch returns fixed image results after an optional delay, and
// records whether ImageSearch was invoked.
type stubSearch struct {
	mu      sync.Mutex
	delay   time.Duration
	results []search.ImageResult
	err     error
	calls   int
	done    chan struct{}
}

func (s *stubSearch) TextSearch(ctx context.Context, q search.Query) ([]search.TextResult, error) {
	return nil, nil
}

func (s *stubSearch) ImageSearch(ctx context.Context, q search.Query) ([]search.ImageResult, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.done != nil {
		close(s.done)
	}
	return s.results, s.err
}

func TestEngine_ProcessWindow_NewTopic(t *testing.T) {
	llm := &stubLLM{responses: []string{`{"topic":"Solar Energy","keywords":["solar","panels"]}`}}
	core := state.New(100, 10)
	var notified []observer.Event
	obs := observer.Func(func(e observer.Event) { notified = append(notified, e) })

	engine := NewEngine(llm, core, JaccardSimilarity{}, nil, obs, Config{SimilarityThreshold: 0.7})
	defer engine.Shutdown()

	if err := engine.ProcessWindow(context.Background(), "let's talk about solar energy"); err != nil {
		t.Fatalf("ProcessWindow returned error: %v", err)
	}

	stats := core.GetStats()
	if stats.TopicCount != 1 {
		t.Fatalf("expected 1 topic, got %d", stats.TopicCount)
	}
	if len(notified) != 1 || !notified[0].TopicUpdate.IsNew {
		t.Fatalf("expected one is_new topic_update notification, got %+v", notified)
	}
}

func TestEngine_ProcessWindow_ReuseDetection(t *testing.T) {
	llm := &stubLLM{responses: []string{
		`{"topic":"Solar Energy","keywords":["solar"]}`,
		`{"topic":"Solar Energy","keywords":["solar"]}`,
	}}
	core := state.New(100, 10)
	engine := NewEngine(llm, core, JaccardSimilarity{}, nil, nil, Config{SimilarityThreshold: 0.7})
	defer engine.Shutdown()

	ctx := context.Background()
	if err := engine.ProcessWindow(ctx, "solar energy talk"); err != nil {
		t.Fatalf("first ProcessWindow error: %v", err)
	}
	if err := engine.ProcessWindow(ctx, "more solar energy talk"); err != nil {
		t.Fatalf("second ProcessWindow error: %v", err)
	}

	stats := core.GetStats()
	if stats.TopicCount != 1 {
		t.Fatalf("expected reuse to keep topic count at 1, got %d", stats.TopicCount)
	}
}

func TestEngine_ProcessWindow_MalformedJSONIsNoOp(t *testing.T) {
	llm := &stubLLM{responses: []string{"not json at all"}}
	core := state.New(100, 10)
	engine := NewEngine(llm, core, JaccardSimilarity{}, nil, nil, Config{SimilarityThreshold: 0.7})
	defer engine.Shutdown()

	if err := engine.ProcessWindow(context.Background(), "whatever"); err != nil {
		t.Fatalf("expected nil error on malformed JSON, got %v", err)
	}
	if stats := core.GetStats(); stats.TopicCount != 0 {
		t.Fatalf("expected no topic created, got %d", stats.TopicCount)
	}
}

func TestEngine_ProcessWindow_EmptyTopicIsNoOp(t *testing.T) {
	llm := &stubLLM{responses: []string{`{"topic":"","keywords":[]}`}}
	core := state.New(100, 10)
	engine := NewEngine(llm, core, JaccardSimilarity{}, nil, nil, Config{SimilarityThreshold: 0.7})
	defer engine.Shutdown()

	if err := engine.ProcessWindow(context.Background(), "small talk"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := core.GetStats(); stats.TopicCount != 0 {
		t.Fatalf("expected no topic created, got %d", stats.TopicCount)
	}
}

func TestEngine_ProcessWindow_StripsCodeFence(t *testing.T) {
	llm := &stubLLM{responses: []string{"```json\n{\"topic\":\"AI Future\",\"keywords\":[\"ai\"]}\n```"}}
	core := state.New(100, 10)
	engine := NewEngine(llm, core, JaccardSimilarity{}, nil, nil, Config{SimilarityThreshold: 0.7})
	defer engine.Shutdown()

	if err := engine.ProcessWindow(context.Background(), "ai talk"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := core.GetStats(); stats.TopicCount != 1 {
		t.Fatalf("expected fenced JSON to parse into one topic, got %d", stats.TopicCount)
	}
}

// scoreMap lets a test pin exact similarity scores per stored text,
// for deterministic tie-break assertions independent of Jaccard/hash
// embedding behavior.
type scoreMap map[string]float64

func (m scoreMap) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	return m[b]
}

func TestEngine_ProcessWindow_TieBreakLowestID(t *testing.T) {
	llm := &stubLLM{responses: []string{
		`{"topic":"Topic A","keywords":[]}`,
		`{"topic":"Topic B","keywords":[]}`,
		`{"topic":"Topic C","keywords":[]}`,
	}}
	core := state.New(100, 10)
	sim := scoreMap{"Topic A": 0, "Topic B": 0}
	engine := NewEngine(llm, core, sim, nil, nil, Config{SimilarityThreshold: 0.7})
	defer engine.Shutdown()

	ctx := context.Background()
	engine.ProcessWindow(ctx, "a")
	engine.ProcessWindow(ctx, "b")

	// Both existing topics now score 0.85 against "Topic C" - a tie
	// that must resolve to the lowest (earliest-created) id, T0.
	sim["Topic A"] = 0.85
	sim["Topic B"] = 0.85
	if err := engine.ProcessWindow(ctx, "c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := core.GetStats()
	if stats.TopicCount != 2 {
		t.Fatalf("expected tie to resolve to reuse (no new topic), got %d topics", stats.TopicCount)
	}
	if stats.CurrentTopicID == nil || *stats.CurrentTopicID != state.TopicID(0) {
		t.Fatalf("expected tie broken toward lowest id T0, got %+v", stats.CurrentTopicID)
	}
}

func TestEngine_ProcessWindow_ThresholdBoundary(t *testing.T) {
	llm := &stubLLM{responses: []string{
		`{"topic":"Topic A","keywords":[]}`,
		`{"topic":"Topic B","keywords":[]}`,
	}}
	core := state.New(100, 10)
	sim := scoreMap{"Topic A": 0.7}
	engine := NewEngine(llm, core, sim, nil, nil, Config{SimilarityThreshold: 0.7})
	defer engine.Shutdown()

	ctx := context.Background()
	engine.ProcessWindow(ctx, "a")
	if err := engine.ProcessWindow(ctx, "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Score exactly equal to the threshold must count as a match (>=).
	if stats := core.GetStats(); stats.TopicCount != 1 {
		t.Fatalf("expected score==threshold to reuse, got %d topics", stats.TopicCount)
	}
}

func TestEngine_ImageEnrichment_NonBlocking(t *testing.T) {
	llm := &stubLLM{responses: []string{`{"topic":"Solar Energy","keywords":["solar","panels","grid"]}`}}
	core := state.New(100, 10)
	done := make(chan struct{})
	sch := &stubSearch{
		delay:   30 * time.Second,
		results: []search.ImageResult{{ImageURL: "https://example.com/solar.jpg"}},
		done:    done,
	}
	var notified []observer.Event
	obs := observer.Func(func(e observer.Event) { notified = append(notified, e) })

	// Not deferring engine.Shutdown() here: Shutdown blocks on the
	// pool's WaitGroup, which would wait out the 30s-sleeping
	// enrichment task this test exists to prove doesn't block the
	// caller. The task is left to finish on its own; the test process
	// does not wait for it.
	engine := NewEngine(llm, core, JaccardSimilarity{}, sch, obs, Config{SimilarityThreshold: 0.7, ImageKeywordLimit: 3})

	start := time.Now()
	if err := engine.ProcessWindow(context.Background(), "solar energy talk"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Fatalf("ProcessWindow blocked on image enrichment: took %v", elapsed)
	}
	if len(notified) != 1 {
		t.Fatalf("expected topic_update notification before enrichment completes, got %d", len(notified))
	}

	snap := core.SnapshotForExport()
	if len(snap.TopicImages) != 0 {
		t.Fatalf("expected no topic_images entry yet, got %+v", snap.TopicImages)
	}
}

func TestEngine_ImageEnrichment_RecordsNullOnFailure(t *testing.T) {
	llm := &stubLLM{responses: []string{`{"topic":"Solar Energy","keywords":["solar"]}`}}
	core := state.New(100, 10)
	done := make(chan struct{})
	sch := &stubSearch{results: nil, done: done}

	engine := NewEngine(llm, core, JaccardSimilarity{}, sch, nil, Config{SimilarityThreshold: 0.7, ImageKeywordLimit: 3})
	defer engine.Shutdown()

	if err := engine.ProcessWindow(context.Background(), "solar energy talk"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enrichment task never ran")
	}
	// Give RecordTopicImage's own call a moment to land after the
	// search call returns.
	time.Sleep(50 * time.Millisecond)

	snap := core.SnapshotForExport()
	if len(snap.TopicImages) != 1 || snap.TopicImages[0].ImageURL != nil {
		t.Fatalf("expected one null image record, got %+v", snap.TopicImages)
	}
}
