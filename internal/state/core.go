package state

import (
	"context"
	"sync"
	"time"

	"github.com/ppiankov/convoengine/internal/coreerrors"
)

// Core is the single authoritative owner of every piece of shared
// mutable pipeline state. Every mutating method takes mu for its whole
// body and returns plain value copies; there are no exported mutable
// fields and no method returns a pointer into internal storage.
type Core struct {
	mu   sync.Mutex
	cond *sync.Cond

	bufferSize int
	transcript []TranscriptSegment

	batchSize int
	batch     []string

	nextTopicID    TopicID
	nodes          map[TopicID]*TopicNode
	nodeOrder      []TopicID
	edges          []TopicEdge
	topicPath      []TopicID
	currentTopicID *TopicID

	topicImages []TopicImage

	factQueue   []string
	factResults []FactResult
}

// New creates a Core with the given transcript buffer capacity and
// claim-selection batch size.
func New(bufferSize, batchSize int) *Core {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	c := &Core{
		bufferSize: bufferSize,
		batchSize:  batchSize,
		nodes:      make(map[TopicID]*TopicNode),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// AppendSegment appends a transcript segment to the rolling buffer,
// dropping the oldest entry once the buffer is at capacity.
func (c *Core) AppendSegment(seg TranscriptSegment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transcript = append(c.transcript, seg)
	if over := len(c.transcript) - c.bufferSize; over > 0 {
		c.transcript = c.transcript[over:]
	}
}

// AppendSentenceToBatch appends text to the sentence batch and reports
// the new size and whether it has reached the configured batch size.
func (c *Core) AppendSentenceToBatch(text string) (newSize int, reachedThreshold bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.batch = append(c.batch, text)
	newSize = len(c.batch)
	return newSize, newSize >= c.batchSize
}

// DrainBatch snapshots and clears the sentence batch atomically.
func (c *Core) DrainBatch() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.batch
	c.batch = nil
	return snapshot
}

// EnqueueClaim appends a candidate claim to the fact queue. Never
// blocks and never rate-limited; the queue is unbounded.
func (c *Core) EnqueueClaim(text string) {
	c.mu.Lock()
	c.factQueue = append(c.factQueue, text)
	c.mu.Unlock()
	c.cond.Broadcast()
}

// DequeueClaim blocks until a claim is available or ctx is done,
// returning claims in strict FIFO order.
func (c *Core) DequeueClaim(ctx context.Context) (string, error) {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.factQueue) == 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		c.cond.Wait()
	}

	claim := c.factQueue[0]
	c.factQueue = c.factQueue[1:]
	return claim, nil
}

// AddTopicNode creates a new topic node, assigns it the next id, links
// it from the current topic (if any), and makes it current. It is the
// only operation that ever creates a graph edge.
func (c *Core) AddTopicNode(topicText string, keywords []string, ts time.Time) TopicID {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextTopicID
	c.nextTopicID++

	node := &TopicNode{
		ID:            id,
		TopicText:     topicText,
		Keywords:      append([]string{}, keywords...),
		Timestamp:     ts,
		SentenceCount: 1,
	}
	c.nodes[id] = node
	c.nodeOrder = append(c.nodeOrder, id)

	if c.currentTopicID != nil {
		c.edges = append(c.edges, TopicEdge{From: *c.currentTopicID, To: id})
	}

	idCopy := id
	c.currentTopicID = &idCopy
	c.topicPath = append(c.topicPath, id)

	return id
}

// SwitchToTopic makes existingID the current topic without creating an
// edge, incrementing its sentence count. Returns an InvariantError if
// the id does not exist.
func (c *Core) SwitchToTopic(existingID TopicID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.nodes[existingID]
	if !ok {
		return coreerrors.NewInvariantError("switch_to_topic", "topic id does not exist")
	}

	node.SentenceCount++
	idCopy := existingID
	c.currentTopicID = &idCopy
	c.topicPath = append(c.topicPath, existingID)

	return nil
}

// RecordTopicImage appends an image-enrichment result for topicID.
// Idempotent: a repeated call with the same (topicID, url) is a no-op.
// When url is non-nil it also fills TopicNode.ImageURL if not already
// set.
func (c *Core) RecordTopicImage(topicID TopicID, url *string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.nodes[topicID]
	if !ok {
		return coreerrors.NewInvariantError("record_topic_image", "topic id does not exist")
	}

	for _, img := range c.topicImages {
		if img.TopicID == topicID && sameURL(img.ImageURL, url) {
			return nil
		}
	}

	c.topicImages = append(c.topicImages, TopicImage{
		TopicID:   topicID,
		TopicText: node.TopicText,
		ImageURL:  url,
		Timestamp: time.Now(),
	})

	if url != nil && node.ImageURL == nil {
		node.ImageURL = url
	}

	return nil
}

func sameURL(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AppendFactResult appends a completed verification. Returns a
// PolicyError if the verdict is outside the enumerated set, rather
// than appending it.
func (c *Core) AppendFactResult(result FactResult) error {
	if !result.Verdict.Valid() {
		return coreerrors.NewPolicyError("append_fact_result", "verdict outside enumerated set: "+string(result.Verdict))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.factResults = append(c.factResults, result)
	return nil
}

// GetStats returns a point-in-time view of the pipeline counters.
func (c *Core) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		TranscriptSegments: len(c.transcript),
		TopicCount:         len(c.nodes),
		CurrentTopicID:     copyTopicID(c.currentTopicID),
		SentenceBatchSize:  len(c.batch),
		FactQueueDepth:     len(c.factQueue),
		FactResultCount:    len(c.factResults),
	}
}

// SnapshotForExport returns the full exportable state: nodes, edges,
// topic path, topic images, fact results, and metadata.
func (c *Core) SnapshotForExport() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodes := make([]TopicNode, 0, len(c.nodeOrder))
	for _, id := range c.nodeOrder {
		nodes = append(nodes, *c.nodes[id])
	}

	return Snapshot{
		Nodes:       nodes,
		Edges:       append([]TopicEdge{}, c.edges...),
		TopicPath:   append([]TopicID{}, c.topicPath...),
		TopicImages: append([]TopicImage{}, c.topicImages...),
		FactResults: append([]FactResult{}, c.factResults...),
		Metadata: Metadata{
			ExportedAt:         time.Now(),
			CurrentTopicID:     copyTopicID(c.currentTopicID),
			TranscriptSegments: len(c.transcript),
		},
	}
}

// TopicSummary returns a compact view of the current topic and the
// most recent entries of the topic path, for callers that want a
// cheap status readout without the full exportable snapshot.
func (c *Core) TopicSummary() TopicSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := TopicSummary{
		CurrentTopicID: copyTopicID(c.currentTopicID),
		TotalTopics:    len(c.nodes),
	}

	if c.currentTopicID != nil {
		if node, ok := c.nodes[*c.currentTopicID]; ok {
			summary.CurrentTopicText = node.TopicText
		}
	}

	const recentN = 10
	start := 0
	if len(c.topicPath) > recentN {
		start = len(c.topicPath) - recentN
	}
	summary.RecentPath = append([]TopicID{}, c.topicPath[start:]...)

	return summary
}

// TopicText returns the stored topic text for id, for similarity
// comparisons during reuse detection. Returns false if id is unknown.
func (c *Core) TopicText(id TopicID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.nodes[id]
	if !ok {
		return "", false
	}
	return node.TopicText, true
}

// TopicNode returns a copy of the stored node for id, for notification
// payloads that need more than just the topic text. Returns false if
// id is unknown.
func (c *Core) TopicNode(id TopicID) (TopicNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.nodes[id]
	if !ok {
		return TopicNode{}, false
	}
	return *node, true
}

// TopicTextEntry pairs a topic id with its stored topic text, for the
// Topic Engine's reuse-detection scan.
type TopicTextEntry struct {
	ID   TopicID
	Text string
}

// TopicTexts returns every existing topic id paired with its stored
// text, in creation order, for the Topic Engine's reuse scan.
func (c *Core) TopicTexts() []TopicTextEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]TopicTextEntry, 0, len(c.nodeOrder))
	for _, id := range c.nodeOrder {
		out = append(out, TopicTextEntry{ID: id, Text: c.nodes[id].TopicText})
	}
	return out
}

func copyTopicID(id *TopicID) *TopicID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
