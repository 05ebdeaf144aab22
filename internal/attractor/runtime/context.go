package runtime

import (
	"fmt"
	"sort"
	"sync"
)

// internalKeyPrefix marks keys the runtime itself writes (run id, node
// lineage, retry counters) as distinct from pipeline-author context updates.
const internalKeyPrefix = "internal."

// Context is the mutable key/value store threaded through a pipeline run.
// Stage outcomes merge ContextUpdates into it; condition expressions and
// stylesheet selectors read from it via Get. It is safe for concurrent use
// since parallel branches read and write it concurrently.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
	logs   []string
}

func NewContext() *Context {
	return &Context{values: map[string]any{}}
}

// Get returns the value stored under key, or ok=false if absent.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the value stored under key as a string, or def if the
// key is absent or not a string. Numbers and booleans are formatted rather
// than rejected, since context updates often arrive as JSON-decoded values.
func (c *Context) GetString(key, def string) string {
	v, ok := c.Get(key)
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Set stores value under key. Keys under the internal. namespace may only
// be written via SetInternal.
func (c *Context) Set(key string, value any) error {
	if isInternalKey(key) {
		return fmt.Errorf("context: %q is reserved for internal use", key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = map[string]any{}
	}
	c.values[key] = value
	return nil
}

// SetInternal writes a runtime-owned key (run id, node lineage, retry
// counters) that pipeline authors cannot overwrite through ordinary updates.
func (c *Context) SetInternal(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = map[string]any{}
	}
	c.values[internalKeyPrefix+key] = value
}

func isInternalKey(key string) bool {
	return len(key) >= len(internalKeyPrefix) && key[:len(internalKeyPrefix)] == internalKeyPrefix
}

// Merge applies a batch of context updates in key order, rejecting writes to
// the internal. namespace. Returns the first rejected key, if any.
func (c *Context) Merge(updates map[string]any) error {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.Set(k, updates[k]); err != nil {
			return err
		}
	}
	return nil
}

// ApplyUpdates applies a stage outcome's context_updates map, silently
// skipping any key in the reserved internal. namespace instead of failing
// the whole batch — a handler author typo shouldn't abort an otherwise
// successful stage.
func (c *Context) ApplyUpdates(updates map[string]any) {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if isInternalKey(k) {
			continue
		}
		_ = c.Set(k, updates[k])
	}
}

// AppendLog records a free-text diagnostic line (engine warnings, preflight
// notes) alongside the context so it round-trips through checkpoint/resume.
func (c *Context) AppendLog(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, line)
}

// SnapshotLogs returns a copy of the accumulated log lines.
func (c *Context) SnapshotLogs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string{}, c.logs...)
}

// Snapshot returns a shallow copy of all non-internal values, suitable for
// persisting alongside a checkpoint.
func (c *Context) Snapshot() map[string]any {
	out := map[string]any{}
	for k, v := range c.SnapshotValues() {
		if !isInternalKey(k) {
			out[k] = v
		}
	}
	return out
}

// SnapshotValues returns a shallow copy of every value, including internal.
// ones, for exact checkpoint round-tripping.
func (c *Context) SnapshotValues() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// ReplaceSnapshot overwrites the context's entire state from a prior
// checkpoint's values and logs (resume, §4.2.8).
func (c *Context) ReplaceSnapshot(values map[string]any, logs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]any, len(values))
	for k, v := range values {
		c.values[k] = v
	}
	c.logs = append([]string{}, logs...)
}

// Clone produces an independent Context seeded with this one's current
// values and logs, used when forking a parallel branch (§4.2.7).
func (c *Context) Clone() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := NewContext()
	for k, v := range c.values {
		cp.values[k] = v
	}
	cp.logs = append([]string{}, c.logs...)
	return cp
}
