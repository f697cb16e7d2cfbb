// Package transcript implements Transcript Ingest: the single entry
// point for upstream transcript events. It classifies each event as
// partial or final, advances the shared State Core's counters only for
// final events, and dispatches topic-update and claim-selection tasks
// as their thresholds cross — without ever blocking on those tasks
// itself.
package transcript

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/convoengine/internal/observer"
	"github.com/ppiankov/convoengine/internal/state"
	"github.com/ppiankov/convoengine/internal/worker"
)

// Event is one upstream transcript event.
type Event struct {
	Text               string
	IsFinal            bool
	Confidence         float64
	PerWordConfidences []float64
	ReceivedAt         time.Time
}

// TopicUpdateFunc runs one topic-extraction cycle over a snapshot of
// recent final sentences.
type TopicUpdateFunc func(ctx context.Context, sentences []string) error

// ClaimSelectionFunc runs claim selection over a drained sentence batch.
type ClaimSelectionFunc func(ctx context.Context, sentences []string) error

// Config parameterizes Ingest.
type Config struct {
	// TopicUpdateThreshold is the number of final sentences between
	// topic-update task dispatches.
	TopicUpdateThreshold int
}

// Ingest is the one ingest task per active stream described by the
// concurrency model: it performs only cheap state mutations itself
// and hands everything else off to background tasks.
type Ingest struct {
	core *state.Core
	obs  observer.Observer
	cfg  Config

	onTopicUpdate    TopicUpdateFunc
	onClaimSelection ClaimSelectionFunc

	topicPool *worker.Pool
	claimPool *worker.Pool

	mu                        sync.Mutex
	sentencesSinceTopicUpdate int
	pendingTopicSentences     []string
}

// NewIngest creates an Ingest wired to core, obs, and the two
// downstream task functions.
func NewIngest(core *state.Core, obs observer.Observer, cfg Config, onTopicUpdate TopicUpdateFunc, onClaimSelection ClaimSelectionFunc) *Ingest {
	if obs == nil {
		obs = observer.Func(func(observer.Event) {})
	}
	if cfg.TopicUpdateThreshold <= 0 {
		cfg.TopicUpdateThreshold = 5
	}

	topicPool := worker.NewPool(4)
	topicPool.Start()
	topicPool.Detach()

	claimPool := worker.NewPool(4)
	claimPool.Start()
	claimPool.Detach()

	return &Ingest{
		core:             core,
		obs:              obs,
		cfg:              cfg,
		onTopicUpdate:    onTopicUpdate,
		onClaimSelection: onClaimSelection,
		topicPool:        topicPool,
		claimPool:        claimPool,
	}
}

// Shutdown stops the background task pools. It cancels the context
// handed to the tasks and waits for the tasks already running to
// return; tasks still queued may be dropped.
func (in *Ingest) Shutdown() {
	in.topicPool.Shutdown()
	in.claimPool.Shutdown()
}

// Ingest classifies evt and, for final events, advances state and
// dispatches whichever downstream tasks have reached their threshold.
// Dispatch never blocks this call, and a dispatched task's later
// failure never rolls back the state mutation that triggered it.
func (in *Ingest) Ingest(ctx context.Context, evt Event) {
	in.obs.Notify(observer.Event{
		Type: observer.EventTranscript,
		Transcript: &observer.TranscriptPayload{
			Text:       evt.Text,
			IsFinal:    evt.IsFinal,
			Confidence: evt.Confidence,
		},
	})

	if !evt.IsFinal {
		return
	}

	in.core.AppendSegment(state.TranscriptSegment{
		Text:       evt.Text,
		IsFinal:    true,
		Confidence: evt.Confidence,
		Timestamp:  evt.ReceivedAt,
	})

	topicSnapshot, triggerTopic := in.advanceTopicCounter(evt.Text)

	_, reachedBatch := in.core.AppendSentenceToBatch(evt.Text)
	var batchSnapshot []string
	if reachedBatch {
		batchSnapshot = in.core.DrainBatch()
	}

	if triggerTopic {
		in.dispatchTopicUpdate(ctx, topicSnapshot)
	}
	if batchSnapshot != nil {
		in.dispatchClaimSelection(ctx, batchSnapshot)
	}
}

func (in *Ingest) advanceTopicCounter(text string) (snapshot []string, triggered bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.pendingTopicSentences = append(in.pendingTopicSentences, text)
	in.sentencesSinceTopicUpdate++

	if in.sentencesSinceTopicUpdate < in.cfg.TopicUpdateThreshold {
		return nil, false
	}

	snapshot = in.pendingTopicSentences
	in.pendingTopicSentences = nil
	in.sentencesSinceTopicUpdate = 0
	return snapshot, true
}

func (in *Ingest) dispatchTopicUpdate(ctx context.Context, sentences []string) {
	if in.onTopicUpdate == nil {
		return
	}
	in.topicPool.Submit(worker.FuncJob(func(taskCtx context.Context) worker.Result {
		if err := in.onTopicUpdate(taskCtx, sentences); err != nil {
			fmt.Printf("Warning: topic-update task failed: %v\n", err)
			return worker.NewResult(err)
		}
		return worker.NewResult(nil)
	}))
}

func (in *Ingest) dispatchClaimSelection(ctx context.Context, sentences []string) {
	if in.onClaimSelection == nil {
		return
	}
	in.claimPool.Submit(worker.FuncJob(func(taskCtx context.Context) worker.Result {
		if err := in.onClaimSelection(taskCtx, sentences); err != nil {
			fmt.Printf("Warning: claim-selection task failed: %v\n", err)
			return worker.NewResult(err)
		}
		return worker.NewResult(nil)
	}))
}
