// Package export serializes a state.Snapshot to the on-the-wire JSON
// shape named in spec.md §6 (`{nodes, edges, topic_path, topic_images,
// fact_results, metadata}`) and provides a Replay helper that
// reconstructs a topic graph from an exported topic_path, for the
// round-trip property in spec.md §8.
package export

import (
	"encoding/json"

	"github.com/ppiankov/convoengine/internal/coreerrors"
	"github.com/ppiankov/convoengine/internal/state"
)

// Marshal renders snap as indented JSON.
func Marshal(snap state.Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// Unmarshal parses a previously exported snapshot.
func Unmarshal(data []byte) (state.Snapshot, error) {
	var snap state.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return state.Snapshot{}, coreerrors.NewParseError("export.unmarshal", err)
	}
	return snap, nil
}

// Replay reconstructs snap's topic graph into core by walking
// topic_path in order: the first time an id is seen it is recreated
// with add_topic_node (recreating the same edges), every later
// occurrence is replayed as switch_to_topic. core must be empty.
//
// This only succeeds if topic_path is a valid creation order — the
// first occurrence of each id appears in the same relative order the
// ids were originally assigned, which holds for any snapshot taken
// from a real Core, since add_topic_node is the only path that
// introduces a new id and it always appends to topic_path.
func Replay(snap state.Snapshot, core *state.Core) error {
	nodeByID := make(map[state.TopicID]state.TopicNode, len(snap.Nodes))
	for _, n := range snap.Nodes {
		nodeByID[n.ID] = n
	}

	seen := make(map[state.TopicID]bool, len(snap.Nodes))
	for _, id := range snap.TopicPath {
		if seen[id] {
			if err := core.SwitchToTopic(id); err != nil {
				return err
			}
			continue
		}

		node, ok := nodeByID[id]
		if !ok {
			return coreerrors.NewInvariantError("export.replay", "topic_path references a node id absent from nodes[]")
		}

		newID := core.AddTopicNode(node.TopicText, node.Keywords, node.Timestamp)
		if newID != id {
			return coreerrors.NewInvariantError("export.replay", "topic_path is not a valid creation order for a fresh core")
		}
		seen[id] = true
	}

	return nil
}
