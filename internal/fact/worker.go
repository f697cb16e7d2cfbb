package fact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/convoengine/internal/coreerrors"
	"github.com/ppiankov/convoengine/internal/llmprovider"
	"github.com/ppiankov/convoengine/internal/observer"
	"github.com/ppiankov/convoengine/internal/search"
	"github.com/ppiankov/convoengine/internal/state"
	"github.com/ppiankov/convoengine/internal/worker"
)

// ClaimState names one state in the per-claim verification pipeline:
//
//	Queued -> Optimizing -> Searching -> Verifying -> Reported
//	                  \          \           \
//	                    -------- Errored (terminal, no FactResult)
type ClaimState string

const (
	StateQueued     ClaimState = "queued"
	StateOptimizing ClaimState = "optimizing"
	StateSearching  ClaimState = "searching"
	StateVerifying  ClaimState = "verifying"
	StateReported   ClaimState = "reported"
	StateErrored    ClaimState = "errored"
)

// WorkerConfig parameterizes the verification pipeline.
type WorkerConfig struct {
	// RateLimit is the minimum interval between the start of
	// successive verifications. Defaults to 10s.
	RateLimit  time.Duration
	MaxResults int
	SafeSearch search.SafeSearch
	Region     string

	// HostRequestsPerSecond and HostBurst configure the per-host
	// politeness limiter guarding calls into the search provider.
	// Defaults to 2 req/s, burst 3.
	HostRequestsPerSecond float64
	HostBurst             int
}

// evidenceSearchHost is the pacing key worker.Limiter uses for every
// TextSearch call: the search.Provider abstraction doesn't expose
// which host it actually talks to, so every evidence-retrieval call
// shares one politeness bucket regardless of provider.
const evidenceSearchHost = "https://search-provider.internal/evidence"

// Worker is the single long-lived consumer of the fact queue. It
// paces verification starts with one global token bucket (pacer),
// independent of hostLimiter's per-host politeness limiter, which
// only governs calls into retrieveEvidence.
type Worker struct {
	llm         llmprovider.Provider
	search      search.Provider
	blocklist   *search.Blocklist
	core        *state.Core
	obs         observer.Observer
	pacer       *rate.Limiter
	hostLimiter *worker.Limiter
	cfg         WorkerConfig
}

// NewWorker creates a verification Worker. blocklist may be nil to
// disable URL filtering.
func NewWorker(llm llmprovider.Provider, searchProvider search.Provider, blocklist *search.Blocklist, core *state.Core, obs observer.Observer, cfg WorkerConfig) *Worker {
	if obs == nil {
		obs = observer.Func(func(observer.Event) {})
	}
	interval := cfg.RateLimit
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hostRate := cfg.HostRequestsPerSecond
	if hostRate <= 0 {
		hostRate = 2
	}
	hostBurst := cfg.HostBurst
	if hostBurst <= 0 {
		hostBurst = 3
	}
	return &Worker{
		llm:         llm,
		search:      searchProvider,
		blocklist:   blocklist,
		core:        core,
		obs:         obs,
		pacer:       rate.NewLimiter(rate.Every(interval), 1),
		hostLimiter: worker.NewLimiter(hostRate, hostBurst),
		cfg:         cfg,
	}
}

// Run is the fact-worker task's body: dequeue, pace, verify, repeat,
// until ctx is done. It is signaled to exit between claims, never
// mid-pipeline, per the shutdown contract — Run only checks ctx at the
// two suspension points (DequeueClaim, the rate-limit wait), never
// abandons a claim partway through its pipeline.
func (w *Worker) Run(ctx context.Context) {
	for {
		claim, err := w.core.DequeueClaim(ctx)
		if err != nil {
			return
		}

		if err := w.pacer.Wait(ctx); err != nil {
			return
		}

		w.verify(context.WithoutCancel(ctx), claim)
	}
}

func (w *Worker) verify(ctx context.Context, claim string) {
	query, err := w.optimizeQuery(ctx, claim)
	if err != nil {
		w.fail(StateOptimizing, err)
		return
	}

	evidence, err := w.retrieveEvidence(ctx, claim, query)
	if err != nil {
		w.fail(StateSearching, err)
		return
	}

	result, err := w.verifyClaim(ctx, claim, evidence)
	if err != nil {
		w.fail(StateVerifying, err)
		return
	}

	if err := w.core.AppendFactResult(*result); err != nil {
		w.fail(StateReported, err)
		return
	}

	w.obs.Notify(observer.Event{
		Type: observer.EventFactResult,
		FactResult: &observer.FactResultPayload{
			Claim:       result.Claim,
			Verdict:     string(result.Verdict),
			Confidence:  result.Confidence,
			Explanation: result.Explanation,
			KeyFacts:    result.KeyFacts,
			Sources:     result.EvidenceSources,
		},
	})
}

// fail transitions the claim to Errored: logged, a notification
// emitted, no FactResult appended, no retry.
func (w *Worker) fail(at ClaimState, err error) {
	fmt.Printf("Warning: claim verification failed at %s: %v\n", at, err)
	w.obs.Notify(observer.Event{
		Type: observer.EventError,
		Error: &observer.ErrorPayload{
			Op:      "fact." + string(at),
			Kind:    coreerrors.Kind(err),
			Message: err.Error(),
		},
	})
}

const queryOptimizationSystemPrompt = `Reduce the given factual claim to a concise 3-8 word web search query focused on its key entities, numbers, and dates. Respond with the query text only, no quotes, no commentary.`

func (w *Worker) optimizeQuery(ctx context.Context, claim string) (string, error) {
	raw, err := w.llm.Complete(ctx, llmprovider.Request{System: queryOptimizationSystemPrompt, Prompt: claim})
	if err != nil {
		return "", err
	}
	query := strings.Trim(strings.TrimSpace(raw), `"'`)
	if query == "" {
		return claim, nil
	}
	return query, nil
}

type evidenceItem struct {
	Title   string
	Snippet string
	URL     string
}

// retrieveEvidence searches for query (the optimized query) and, if it
// differs from the raw claim text, the claim itself, concurrently —
// the raw claim often turns up evidence the optimized query misses.
// Each search is paced through hostLimiter before it runs. Results
// from both are merged and deduplicated by URL; the whole call only
// fails if every search in it failed.
func (w *Worker) retrieveEvidence(ctx context.Context, claim, query string) ([]evidenceItem, error) {
	maxResults := w.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	queries := []string{query}
	if claim != query {
		queries = append(queries, claim)
	}

	resultSets := make([][]search.TextResult, len(queries))
	tasks := make([]func() error, len(queries))
	for i, q := range queries {
		i, q := i, q
		tasks[i] = func() error {
			if err := w.hostLimiter.Wait(ctx, evidenceSearchHost); err != nil {
				return err
			}
			results, err := w.search.TextSearch(ctx, search.Query{
				Text:       q,
				MaxResults: maxResults,
				SafeSearch: w.cfg.SafeSearch,
				Region:     w.cfg.Region,
			})
			if err != nil {
				return err
			}
			resultSets[i] = results
			return nil
		}
	}

	outcomes := worker.RunFuncs(tasks, len(tasks))

	var (
		merged    []search.TextResult
		seen      = make(map[string]bool)
		lastErr   error
		succeeded int
	)
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			lastErr = outcome.Err
			continue
		}
		succeeded++
		for _, r := range resultSets[outcome.Index] {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			merged = append(merged, r)
		}
	}
	if succeeded == 0 {
		return nil, lastErr
	}

	if w.blocklist != nil {
		merged = w.blocklist.Filter(merged)
	}
	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}

	items := make([]evidenceItem, 0, len(merged))
	for _, r := range merged {
		items = append(items, evidenceItem{Title: r.Title, Snippet: r.Snippet, URL: r.URL})
	}
	return items, nil
}

const verificationSystemPrompt = `You fact-check a claim against the provided web evidence. Respond with JSON only: {"verdict": "SUPPORTED"|"REFUTED"|"UNCERTAIN", "confidence": <0..1>, "explanation": "...", "key_facts": ["..."]}. Use UNCERTAIN when the evidence is insufficient or contradictory.`

type verificationResponse struct {
	Verdict     string   `json:"verdict"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	KeyFacts    []string `json:"key_facts"`
}

func (w *Worker) verifyClaim(ctx context.Context, claim string, evidence []evidenceItem) (*state.FactResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s\n\nEvidence:\n", claim)
	sources := make([]string, 0, len(evidence))
	for i, e := range evidence {
		fmt.Fprintf(&b, "%d. %s — %s (%s)\n", i+1, e.Title, e.Snippet, e.URL)
		sources = append(sources, e.URL)
	}
	if len(evidence) == 0 {
		b.WriteString("(no evidence retrieved)\n")
	}

	raw, err := w.llm.Complete(ctx, llmprovider.Request{System: verificationSystemPrompt, Prompt: b.String()})
	if err != nil {
		return nil, err
	}

	var parsed verificationResponse
	if err := json.Unmarshal([]byte(llmprovider.StripCodeFence(raw)), &parsed); err != nil {
		return nil, coreerrors.NewParseError("fact.verify_claim", err)
	}

	verdict := state.Verdict(strings.ToUpper(strings.TrimSpace(parsed.Verdict)))
	if !verdict.Valid() {
		return nil, coreerrors.NewPolicyError("fact.verify_claim", "verdict outside enumerated set: "+parsed.Verdict)
	}

	return &state.FactResult{
		Claim:           claim,
		Verdict:         verdict,
		Confidence:      parsed.Confidence,
		Explanation:     parsed.Explanation,
		KeyFacts:        parsed.KeyFacts,
		EvidenceSources: sources,
		Timestamp:       time.Now(),
	}, nil
}
