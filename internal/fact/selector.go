// Package fact implements the Fact Engine: claim selection over a
// drained sentence batch, and the single long-lived verification
// worker that drains the claim queue through a query-optimization,
// evidence-retrieval, and verification pipeline.
package fact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/convoengine/internal/llmprovider"
	"github.com/ppiankov/convoengine/internal/observer"
	"github.com/ppiankov/convoengine/internal/state"
)

const claimSelectionSystemPrompt = `You select verifiable factual claims from a conversation excerpt for independent fact-checking. A claim qualifies only if it is a specific, checkable factual statement with enough context to be searched on its own. Reject opinions, questions, greetings, vague statements, hypotheticals, and sentence fragments. Respond with JSON only: {"selected_claims": [{"claim": "...", "reason": "..."}]}. An empty "selected_claims" list is a valid and common outcome.`

type selectedClaim struct {
	Claim  string `json:"claim"`
	Reason string `json:"reason"`
}

type selectionResponse struct {
	SelectedClaims []selectedClaim `json:"selected_claims"`
}

// Selector runs claim selection over a drained sentence batch.
type Selector struct {
	llm               llmprovider.Provider
	core              *state.Core
	obs               observer.Observer
	maxClaimsPerBatch int
}

// NewSelector creates a Selector that enqueues at most maxClaimsPerBatch
// claims per SelectFromBatch call (0 or negative falls back to 2).
func NewSelector(llm llmprovider.Provider, core *state.Core, obs observer.Observer, maxClaimsPerBatch int) *Selector {
	if obs == nil {
		obs = observer.Func(func(observer.Event) {})
	}
	return &Selector{llm: llm, core: core, obs: obs, maxClaimsPerBatch: maxClaimsPerBatch}
}

// SelectFromBatch concatenates sentences into one paragraph, asks the
// LLM which of them are independently verifiable claims, and enqueues
// up to maxClaimsPerBatch of them. A transport failure or malformed
// response is logged and treated as an empty selection, never
// propagated as an error — claim selection never blocks ingest.
func (s *Selector) SelectFromBatch(ctx context.Context, sentences []string) error {
	if len(sentences) == 0 {
		return nil
	}

	paragraph := strings.Join(sentences, " ")
	prompt := fmt.Sprintf("Conversation excerpt:\n\n%s\n\nSelect up to %d verifiable factual claims.", paragraph, s.effectiveLimit())

	raw, err := s.llm.Complete(ctx, llmprovider.Request{System: claimSelectionSystemPrompt, Prompt: prompt})
	if err != nil {
		fmt.Printf("Warning: claim selection call failed: %v\n", err)
		return nil
	}

	var parsed selectionResponse
	if err := json.Unmarshal([]byte(llmprovider.StripCodeFence(raw)), &parsed); err != nil {
		fmt.Printf("Warning: claim selection returned unparsable JSON: %v\n", err)
		return nil
	}

	limit := s.effectiveLimit()
	enqueued := 0
	for _, sc := range parsed.SelectedClaims {
		if enqueued >= limit {
			break
		}
		claim := strings.TrimSpace(sc.Claim)
		if claim == "" {
			continue
		}

		s.core.EnqueueClaim(claim)
		enqueued++

		s.obs.Notify(observer.Event{
			Type: observer.EventClaimSelected,
			ClaimSelected: &observer.ClaimSelectedPayload{
				Claim:     claim,
				QueueSize: s.core.GetStats().FactQueueDepth,
			},
		})
	}

	return nil
}

func (s *Selector) effectiveLimit() int {
	if s.maxClaimsPerBatch <= 0 {
		return 2
	}
	return s.maxClaimsPerBatch
}
