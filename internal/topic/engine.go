package topic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/convoengine/internal/coreerrors"
	"github.com/ppiankov/convoengine/internal/llmprovider"
	"github.com/ppiankov/convoengine/internal/observer"
	"github.com/ppiankov/convoengine/internal/search"
	"github.com/ppiankov/convoengine/internal/state"
	"github.com/ppiankov/convoengine/internal/worker"
)

// Config parameterizes topic extraction and image enrichment.
type Config struct {
	SimilarityThreshold float64
	ImageKeywordLimit   int
	ImageMaxResults     int
	SafeSearch          search.SafeSearch
	Region              string
	// Debug makes an InvariantError from the State Core panic instead
	// of only being returned and logged.
	Debug bool
}

// Engine runs topic extraction over windows of recent transcript text:
// an LLM call to extract {topic, keywords}, reuse detection against
// the existing topic graph via a pluggable Similarity, and
// fire-and-forget image enrichment for newly created topics.
type Engine struct {
	llm    llmprovider.Provider
	core   *state.Core
	sim    Similarity
	search search.Provider // nil disables image enrichment entirely
	obs    observer.Observer
	cfg    Config
	pool   *worker.Pool
}

// NewEngine creates a Topic Engine. searchProvider may be nil to
// disable image enrichment.
func NewEngine(llm llmprovider.Provider, core *state.Core, sim Similarity, searchProvider search.Provider, obs observer.Observer, cfg Config) *Engine {
	if obs == nil {
		obs = observer.Func(func(observer.Event) {})
	}
	pool := worker.NewPool(2)
	pool.Start()
	pool.Detach()
	return &Engine{llm: llm, core: core, sim: sim, search: searchProvider, obs: obs, cfg: cfg, pool: pool}
}

// Shutdown stops the background image-enrichment pool. Pending
// enrichment tasks are abandoned.
func (e *Engine) Shutdown() {
	e.pool.Shutdown()
}

type extraction struct {
	Topic    string   `json:"topic"`
	Keywords []string `json:"keywords"`
}

const topicExtractionSystemPrompt = `You extract the single dominant topic from a window of conversation transcript. Respond with JSON only, no commentary: {"topic": "<short topic label>", "keywords": ["k1","k2",...]}. If the window has no clear topic, respond with {"topic": "", "keywords": []}.`

// ProcessWindow runs one topic-extraction cycle over text, a
// concatenation of recent final sentences. It either switches to an
// existing topic, creates a new one and kicks off image enrichment, or
// — on a missing, malformed, or empty-topic result — leaves state
// untouched.
func (e *Engine) ProcessWindow(ctx context.Context, text string) error {
	raw, err := e.llm.Complete(ctx, llmprovider.Request{
		System: topicExtractionSystemPrompt,
		Prompt: text,
	})
	if err != nil {
		fmt.Printf("Warning: topic extraction call failed: %v\n", err)
		return nil
	}

	var ext extraction
	if err := json.Unmarshal([]byte(llmprovider.StripCodeFence(raw)), &ext); err != nil {
		fmt.Printf("Warning: topic extraction returned unparsable JSON: %v\n", err)
		return nil
	}

	topicText := strings.TrimSpace(ext.Topic)
	if topicText == "" {
		return nil
	}

	existing := e.core.TopicTexts()
	bestID, bestScore, found := bestMatch(e.sim, topicText, existing)

	if found && bestScore >= e.cfg.SimilarityThreshold {
		if err := e.core.SwitchToTopic(bestID); err != nil {
			coreerrors.PanicIfDebug(err, e.cfg.Debug)
			return err
		}
		node, _ := e.core.TopicNode(bestID)
		e.obs.Notify(observer.Event{
			Type: observer.EventTopicUpdate,
			TopicUpdate: &observer.TopicUpdatePayload{
				TopicID:     topicIDString(bestID),
				Topic:       node.TopicText,
				Keywords:    node.Keywords,
				IsNew:       false,
				ImageURL:    node.ImageURL,
				TotalTopics: e.core.GetStats().TopicCount,
			},
		})
		return nil
	}

	id := e.core.AddTopicNode(topicText, ext.Keywords, time.Now())
	e.obs.Notify(observer.Event{
		Type: observer.EventTopicUpdate,
		TopicUpdate: &observer.TopicUpdatePayload{
			TopicID:     topicIDString(id),
			Topic:       topicText,
			Keywords:    ext.Keywords,
			IsNew:       true,
			TotalTopics: e.core.GetStats().TopicCount,
		},
	})

	if e.search != nil {
		e.enrichAsync(id, topicText, ext.Keywords)
	}

	return nil
}

// bestMatch scans existing (in creation order) for the highest-scoring
// match against topicText. Because existing is already ordered by
// ascending id, keeping the first entry reached for a given score
// breaks ties by lowest id, i.e. earliest creation.
func bestMatch(sim Similarity, topicText string, existing []state.TopicTextEntry) (state.TopicID, float64, bool) {
	var (
		bestID    state.TopicID
		bestScore float64
		found     bool
	)
	for _, entry := range existing {
		score := sim.Score(topicText, entry.Text)
		if !found || score > bestScore {
			bestID = entry.ID
			bestScore = score
			found = true
		}
	}
	return bestID, bestScore, found
}

// enrichAsync builds an image query from topicText plus up to
// ImageKeywordLimit keywords and submits a fire-and-forget task that
// records the first usable result (or null on failure/empty) via
// RecordTopicImage. It never blocks the caller and never surfaces an
// error to ProcessWindow's caller.
func (e *Engine) enrichAsync(id state.TopicID, topicText string, keywords []string) {
	limit := len(keywords)
	if e.cfg.ImageKeywordLimit > 0 && e.cfg.ImageKeywordLimit < limit {
		limit = e.cfg.ImageKeywordLimit
	}

	query := strings.Join(append([]string{topicText}, keywords[:limit]...), " ")

	maxResults := e.cfg.ImageMaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	safeSearch := e.cfg.SafeSearch
	if safeSearch == "" {
		safeSearch = search.SafeSearchStrict
	}

	e.pool.Submit(worker.FuncJob(func(ctx context.Context) worker.Result {
		results, err := e.search.ImageSearch(ctx, search.Query{
			Text:       query,
			MaxResults: maxResults,
			SafeSearch: safeSearch,
			Region:     e.cfg.Region,
		})

		var url *string
		if err == nil && len(results) > 0 && results[0].ImageURL != "" {
			u := results[0].ImageURL
			url = &u
		}

		if recErr := e.core.RecordTopicImage(id, url); recErr != nil {
			fmt.Printf("Warning: record_topic_image failed for topic %d: %v\n", id, recErr)
		}

		return worker.NewResult(err)
	}))
}

func topicIDString(id state.TopicID) string {
	return fmt.Sprintf("%d", id)
}
