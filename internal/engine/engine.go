// Package engine wires the State Core, Transcript Ingest, Topic
// Engine, and Fact Engine into one running pipeline — the
// conversation-analysis analogue of the teacher repo's Pipeline, which
// wired a fetcher, extractors, validator, scorer, and renderer around
// a single page scan.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/convoengine/internal/config"
	"github.com/ppiankov/convoengine/internal/fact"
	"github.com/ppiankov/convoengine/internal/llmprovider"
	"github.com/ppiankov/convoengine/internal/observer"
	"github.com/ppiankov/convoengine/internal/search"
	"github.com/ppiankov/convoengine/internal/state"
	"github.com/ppiankov/convoengine/internal/topic"
	"github.com/ppiankov/convoengine/internal/transcript"
)

// Engine is the fully wired conversation pipeline: one long-lived
// fact-worker goroutine plus an Ingest entry point that dispatches
// topic-update and claim-selection tasks as their thresholds cross.
type Engine struct {
	Core *state.Core

	ingest   *transcript.Ingest
	topicEng *topic.Engine
	factWork *fact.Worker
	selector *fact.Selector

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an Engine from cfg and the three external adapters. obs
// may be nil to run with no downstream notifications.
func New(cfg config.Config, llm llmprovider.Provider, searchProvider search.Provider, sim topic.Similarity, obs observer.Observer) *Engine {
	if obs == nil {
		obs = observer.Func(func(observer.Event) {})
	}

	core := state.New(cfg.TranscriptBufferSize, cfg.Fact.SelectionBatchSize)

	blocklist := search.NewBlocklist(cfg.Search.URLBlocklist)

	topicEng := topic.NewEngine(llm, core, sim, searchProvider, obs, topic.Config{
		SimilarityThreshold: cfg.Topic.SimilarityThreshold,
		ImageKeywordLimit:   cfg.Topic.ImageKeywordLimit,
		ImageMaxResults:     cfg.Search.MaxResults,
		SafeSearch:          search.SafeSearch(cfg.Search.SafeSearch),
		Region:              cfg.Search.Region,
		Debug:               cfg.Debug,
	})

	selector := fact.NewSelector(llm, core, obs, cfg.Fact.MaxClaimsPerBatch)

	factWorker := fact.NewWorker(llm, searchProvider, blocklist, core, obs, fact.WorkerConfig{
		RateLimit:             cfg.Fact.RateLimit,
		MaxResults:            cfg.Search.MaxResults,
		SafeSearch:            search.SafeSearch(cfg.Search.SafeSearch),
		Region:                cfg.Search.Region,
		HostRequestsPerSecond: cfg.Search.HostRequestsPerSecond,
		HostBurst:             cfg.Search.HostBurst,
	})

	ingest := transcript.NewIngest(core, obs, transcript.Config{
		TopicUpdateThreshold: cfg.Topic.UpdateThreshold,
	},
		func(ctx context.Context, sentences []string) error {
			return topicEng.ProcessWindow(ctx, joinSentences(sentences))
		},
		func(ctx context.Context, sentences []string) error {
			return selector.SelectFromBatch(ctx, sentences)
		},
	)

	return &Engine{
		Core:     core,
		ingest:   ingest,
		topicEng: topicEng,
		factWork: factWorker,
		selector: selector,
	}
}

// Start launches the single long-lived fact-worker task. Call once.
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		e.factWork.Run(runCtx)
	}()
}

// Ingest feeds one upstream transcript event into the pipeline.
func (e *Engine) Ingest(ctx context.Context, evt transcript.Event) {
	e.ingest.Ingest(ctx, evt)
}

// Shutdown stops the background work: Ingest's task pools and the
// topic engine's image-enrichment pool are stopped, each cancelling its
// tasks' context and waiting for the tasks already running to return
// (queued tasks may be dropped). Then the fact worker is signaled to
// exit at its next between-claims suspension point, and Shutdown blocks
// until it has exited or gracePeriod elapses, whichever comes first.
// Events passed to Ingest after Shutdown still update state and emit
// transcript notifications, but dispatch no tasks.
func (e *Engine) Shutdown(gracePeriod time.Duration) {
	e.ingest.Shutdown()
	e.topicEng.Shutdown()

	if e.cancel == nil {
		return
	}
	e.cancel()

	select {
	case <-e.done:
	case <-time.After(gracePeriod):
		fmt.Println("Warning: fact worker did not exit within grace period")
	}
}

// Snapshot returns the exportable state. Safe to call before or after
// Shutdown.
func (e *Engine) Snapshot() state.Snapshot {
	return e.Core.SnapshotForExport()
}

func joinSentences(sentences []string) string {
	out := ""
	for i, s := range sentences {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}
