package a2a

import (
	"maps"
	"sort"
)

// ApplyArtifact folds an artifact chunk into the task.
//
// A non-append chunk starts (or replaces) the artifact at its index. An
// append chunk extends the artifact at its index and is rejected when no
// artifact exists there yet or the previous chunk was marked LastChunk.
func (t *Task) ApplyArtifact(chunk Artifact) error {
	pos := -1
	for i := range t.Artifacts {
		if t.Artifacts[i].Index == chunk.Index {
			pos = i
			break
		}
	}

	if !chunk.Append {
		stored := chunk
		stored.Parts = append(Parts(nil), chunk.Parts...)
		stored.Append = false
		if pos >= 0 {
			t.Artifacts[pos] = stored
			return nil
		}
		t.Artifacts = append(t.Artifacts, stored)
		sort.SliceStable(t.Artifacts, func(i, j int) bool {
			return t.Artifacts[i].Index < t.Artifacts[j].Index
		})
		return nil
	}

	if pos < 0 {
		return NewErrorf(CodeInvalidParams, "append chunk for artifact index %d has no initial chunk", chunk.Index)
	}
	existing := &t.Artifacts[pos]
	if existing.LastChunk {
		return NewErrorf(CodeInvalidParams, "artifact index %d is already complete", chunk.Index)
	}
	existing.Parts = append(existing.Parts, chunk.Parts...)
	existing.LastChunk = chunk.LastChunk
	if chunk.Name != "" {
		existing.Name = chunk.Name
	}
	if chunk.Description != "" {
		existing.Description = chunk.Description
	}
	if len(chunk.Metadata) > 0 {
		if existing.Metadata == nil {
			existing.Metadata = make(map[string]any, len(chunk.Metadata))
		}
		maps.Copy(existing.Metadata, chunk.Metadata)
	}
	return nil
}

// WithHistoryLimit returns a shallow copy of t whose history holds at most
// the last n messages. A nil limit leaves history untouched.
func (t Task) WithHistoryLimit(n *int) *Task {
	if n != nil && len(t.History) > *n {
		t.History = append([]Message(nil), t.History[len(t.History)-*n:]...)
	}
	return &t
}
