// Package state owns every piece of mutable data shared across the
// pipeline's tasks: the transcript buffer, the topic graph and path,
// the sentence batch awaiting claim selection, the fact queue, and the
// fact results log. It is the single source of truth the teacher repo
// would have called a Pipeline's state, generalized here to a
// long-lived conversation rather than a single page scan.
package state

import "time"

// TranscriptSegment is one ingested transcript event, final or partial.
// Immutable once appended.
type TranscriptSegment struct {
	Text       string    `json:"text"`
	IsFinal    bool      `json:"is_final"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// TopicID identifies a TopicNode. Assigned from a monotonic counter
// starting at 0.
type TopicID int

// TopicNode is one detected conversation topic.
type TopicNode struct {
	ID            TopicID   `json:"id"`
	TopicText     string    `json:"topic_text"`
	Keywords      []string  `json:"keywords"`
	Timestamp     time.Time `json:"timestamp"`
	SentenceCount int       `json:"sentence_count"`
	ImageURL      *string   `json:"image_url,omitempty"`
}

// TopicEdge is a creation-order edge: v was first created while u was
// the current topic.
type TopicEdge struct {
	From TopicID `json:"from"`
	To   TopicID `json:"to"`
}

// TopicImage records one image-enrichment attempt for a topic.
type TopicImage struct {
	TopicID   TopicID   `json:"topic_id"`
	TopicText string    `json:"topic_text"`
	ImageURL  *string   `json:"image_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Verdict is the enumerated outcome of a claim verification.
type Verdict string

const (
	VerdictSupported Verdict = "SUPPORTED"
	VerdictRefuted   Verdict = "REFUTED"
	VerdictUncertain Verdict = "UNCERTAIN"
)

// Valid reports whether v is one of the enumerated verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictSupported, VerdictRefuted, VerdictUncertain:
		return true
	default:
		return false
	}
}

// FactResult is one completed claim verification. Append-only once
// published.
type FactResult struct {
	Claim           string    `json:"claim"`
	Verdict         Verdict   `json:"verdict"`
	Confidence      float64   `json:"confidence"`
	Explanation     string    `json:"explanation"`
	KeyFacts        []string  `json:"key_facts"`
	EvidenceSources []string  `json:"evidence_sources"`
	Timestamp       time.Time `json:"timestamp"`
}

// Stats is a point-in-time, non-mutating view of pipeline counters.
type Stats struct {
	TranscriptSegments int
	TopicCount         int
	CurrentTopicID     *TopicID
	SentenceBatchSize  int
	FactQueueDepth     int
	FactResultCount    int
}

// Snapshot is the exported shape of the full state: everything needed
// to reconstruct the topic graph and inspect results, per the
// specification's `{nodes, edges, topic_path, topic_images, metadata}`
// export contract.
type Snapshot struct {
	Nodes       []TopicNode  `json:"nodes"`
	Edges       []TopicEdge  `json:"edges"`
	TopicPath   []TopicID    `json:"topic_path"`
	TopicImages []TopicImage `json:"topic_images"`
	FactResults []FactResult `json:"fact_results"`
	Metadata    Metadata     `json:"metadata"`
}

// Metadata carries export-time bookkeeping alongside the snapshot.
type Metadata struct {
	ExportedAt         time.Time `json:"exported_at"`
	CurrentTopicID     *TopicID  `json:"current_topic_id,omitempty"`
	TranscriptSegments int       `json:"transcript_segments"`
}

// TopicSummary is a compact, human-readable view of the current topic
// and recent history: the topic text in play right now, how many
// distinct topics have been seen, and a bounded tail of the path
// between them.
type TopicSummary struct {
	CurrentTopicID   *TopicID `json:"current_topic_id,omitempty"`
	CurrentTopicText string   `json:"current_topic_text,omitempty"`
	TotalTopics      int      `json:"total_topics"`
	RecentPath       []TopicID `json:"recent_path"`
}
