package types

// Cursor is the continuation state of a search. It is owned by the caller
// between pages; the server keeps nothing.
//
// Both stacks are consumed from the end. Offset counts the results already
// read from the shard on top of ShardStack and is zero otherwise.
type Cursor struct {
	ComponentStack []string        `json:"componentStack"`
	ShardStack     []string        `json:"shardStack"`
	VisitedShards  map[string]bool `json:"visitedShards"`
	Offset         int             `json:"offset"`
}

// NewCursor starts a search over components. The last component is searched first.
func NewCursor(components ...string) Cursor {
	return Cursor{ComponentStack: append([]string(nil), components...)}
}

// Done reports whether nothing is left to search.
func (c Cursor) Done() bool {
	return len(c.ComponentStack) == 0 && len(c.ShardStack) == 0
}

// Clone returns a deep copy.
func (c Cursor) Clone() Cursor {
	out := Cursor{
		ComponentStack: append([]string(nil), c.ComponentStack...),
		ShardStack:     append([]string(nil), c.ShardStack...),
		Offset:         c.Offset,
	}
	if len(c.VisitedShards) > 0 {
		out.VisitedShards = make(map[string]bool, len(c.VisitedShards))
		for k, v := range c.VisitedShards {
			if v {
				out.VisitedShards[k] = true
			}
		}
	}
	return out
}

// Visited reports whether shard was already expanded in the current component.
func (c Cursor) Visited(shard string) bool {
	return c.VisitedShards[shard]
}

// Pending reports whether shard is waiting on the shard stack.
func (c Cursor) Pending(shard string) bool {
	for _, s := range c.ShardStack {
		if s == shard {
			return true
		}
	}
	return false
}

// PopComponent removes the component searched next.
func (c Cursor) PopComponent() (Cursor, string, bool) {
	n := len(c.ComponentStack)
	if n == 0 {
		return c, "", false
	}
	out := c.Clone()
	component := out.ComponentStack[n-1]
	out.ComponentStack = out.ComponentStack[:n-1]
	return out, component, true
}

// PushComponent puts an unfinished component back on top.
func (c Cursor) PushComponent(component string) Cursor {
	out := c.Clone()
	out.ComponentStack = append(out.ComponentStack, component)
	return out
}

// PopShard removes the shard searched next. Offset is kept: it belongs to
// the popped shard.
func (c Cursor) PopShard() (Cursor, string, bool) {
	n := len(c.ShardStack)
	if n == 0 {
		return c, "", false
	}
	out := c.Clone()
	shard := out.ShardStack[n-1]
	out.ShardStack = out.ShardStack[:n-1]
	return out, shard, true
}

// PushShards appends shards to the stack, skipping any already pending or
// visited so that a shard is never queued twice in one component traversal.
func (c Cursor) PushShards(shards ...string) Cursor {
	out := c.Clone()
	for _, s := range shards {
		if out.Visited(s) || out.Pending(s) {
			continue
		}
		out.ShardStack = append(out.ShardStack, s)
	}
	return out
}

// Resume puts shard back on top with the offset to continue from.
func (c Cursor) Resume(shard string, offset int) Cursor {
	out := c.Clone()
	out.ShardStack = append(out.ShardStack, shard)
	out.Offset = offset
	return out
}

// MarkVisited records shard as expanded.
func (c Cursor) MarkVisited(shard string) Cursor {
	out := c.Clone()
	if out.VisitedShards == nil {
		out.VisitedShards = make(map[string]bool)
	}
	out.VisitedShards[shard] = true
	return out
}

// ResetOffset clears the per-shard offset after a shard is exhausted.
func (c Cursor) ResetOffset() Cursor {
	out := c.Clone()
	out.Offset = 0
	return out
}

// FinishComponent clears the per-component state once its shards are exhausted.
func (c Cursor) FinishComponent() Cursor {
	out := c.Clone()
	out.ShardStack = nil
	out.VisitedShards = nil
	out.Offset = 0
	return out
}
