// Package checkpoint provides per-component export progress persistence
// with last-processed-item resume.
//
// Every mutation is flushed to disk with an atomic replace, so a
// checkpoint file read after a mid-run kill always reflects a
// consistent prefix of the export.
package checkpoint

import (
	"fmt"
	"os"
	"sync"

	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// Status is a component's lifecycle state within an export run.
type Status string

// Component lifecycle states.
const (
	StatusPending   Status = "pending"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry records one component's export progress.
type Entry struct {
	Status         Status `json:"status"`
	ProcessedCount int    `json:"processed_count"`
	// LastItemID is the highest item id processed so far. Monotonic
	// within a component run; resume continues strictly after it.
	LastItemID int64  `json:"last_item_id"`
	Error      string `json:"error,omitempty"`
}

// Summary aggregates component states for progress reporting.
type Summary struct {
	TotalComponents int `json:"total_components"`
	Completed       int `json:"completed"`
	Failed          int `json:"failed"`
	Pending         int `json:"pending"`
}

// Checkpoint is a file-backed map from component name to Entry.
// Single-writer; the mutex guards concurrent readers during apply-phase
// progress queries.
type Checkpoint struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

// Load opens an existing checkpoint file or starts a fresh one when the
// file does not exist.
func Load(path string) (*Checkpoint, error) {
	cp := &Checkpoint{
		path:    path,
		entries: make(map[string]Entry),
	}

	err := persist.ReadJSON(path, &cp.entries)
	if err != nil {
		if os.IsNotExist(underlying(err)) {
			return cp, nil
		}

		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	return cp, nil
}

// underlying peels wrapped errors down to the os-level cause.
func underlying(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}

		next := u.Unwrap()
		if next == nil {
			return err
		}

		err = next
	}
}

// MarkStarted transitions a component to started and persists.
func (c *Checkpoint) MarkStarted(component string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[component]
	entry.Status = StatusStarted
	entry.Error = ""
	c.entries[component] = entry

	return c.flushLocked()
}

// UpdateProgress records processed count and the last item id.
// LastItemID never moves backwards.
func (c *Checkpoint) UpdateProgress(component string, processed int, lastItemID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[component]
	entry.ProcessedCount = processed

	if lastItemID > entry.LastItemID {
		entry.LastItemID = lastItemID
	}

	c.entries[component] = entry

	return c.flushLocked()
}

// Reset clears a component's progress so a non-resume run starts over.
func (c *Checkpoint) Reset(component string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, component)

	return c.flushLocked()
}

// MarkCompleted transitions a component to its terminal state.
func (c *Checkpoint) MarkCompleted(component string, success bool, errMsg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[component]

	if success {
		entry.Status = StatusCompleted
		entry.Error = ""
	} else {
		entry.Status = StatusFailed
		entry.Error = errMsg
	}

	c.entries[component] = entry

	return c.flushLocked()
}

// IsCompleted reports whether a component finished successfully.
func (c *Checkpoint) IsCompleted(component string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries[component].Status == StatusCompleted
}

// ShouldResume reports whether a component was started but not completed,
// meaning extraction should continue after LastProcessedItem.
func (c *Checkpoint) ShouldResume(component string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.entries[component].Status

	return status == StatusStarted || status == StatusFailed
}

// LastProcessedItem returns the resume cursor for a component.
func (c *Checkpoint) LastProcessedItem(component string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries[component].LastItemID
}

// Entry returns a copy of a component's entry.
func (c *Checkpoint) Entry(component string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries[component]
}

// Summarize aggregates the current component states. The expected
// component list supplies names not yet present in the file.
func (c *Checkpoint) Summarize(components []string) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := Summary{TotalComponents: len(components)}

	for _, name := range components {
		switch c.entries[name].Status {
		case StatusCompleted:
			summary.Completed++
		case StatusFailed:
			summary.Failed++
		default:
			summary.Pending++
		}
	}

	return summary
}

// flushLocked persists the entry map. Caller holds the mutex.
func (c *Checkpoint) flushLocked() error {
	err := persist.WriteJSON(c.path, c.entries)
	if err != nil {
		return fmt.Errorf("flush checkpoint: %w", err)
	}

	return nil
}
