package inspector

import (
	"sort"
	"strings"
	"sync"
)

const separator = "/"

// Tree holds the last value of every topic.
//
// Thread Safety: All methods are safe for concurrent use.
type Tree struct {
	mu    sync.RWMutex
	root  *node
	count int
	limit int

	watchMu  sync.Mutex
	watchers map[*watcher]struct{}
}

type node struct {
	value    *Value
	children map[string]*node
}

type watcher struct {
	ch chan Value
}

// NewTree creates an empty tree. limit caps the number of topics holding a
// value; zero means no limit.
func NewTree(limit int) *Tree {
	return &Tree{
		root:     &node{},
		limit:    limit,
		watchers: make(map[*watcher]struct{}),
	}
}

// Insert stores v under v.Topic, replacing any earlier value. An empty
// retained payload removes the topic instead.
func (t *Tree) Insert(v Value) error {
	if v.Retained && len(v.Payload) == 0 {
		t.Delete(v.Topic)
		t.notify(v)
		return nil
	}

	t.mu.Lock()
	n := t.root
	for _, part := range strings.Split(v.Topic, separator) {
		child, ok := n.children[part]
		if !ok {
			if n.children == nil {
				n.children = make(map[string]*node)
			}
			child = &node{}
			n.children[part] = child
		}
		n = child
	}
	if n.value == nil {
		if t.limit > 0 && t.count >= t.limit {
			t.mu.Unlock()
			t.prune(v.Topic)
			return ErrTreeFull
		}
		t.count++
	}
	n.value = &v
	t.mu.Unlock()

	t.notify(v)
	return nil
}

// Get returns the value stored under topic.
func (t *Tree) Get(topic string) (Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.find(topic)
	if n == nil || n.value == nil {
		return Value{}, false
	}
	return *n.value, true
}

// Delete removes the value stored under topic and any levels left empty.
func (t *Tree) Delete(topic string) bool {
	t.mu.Lock()
	n := t.find(topic)
	if n == nil || n.value == nil {
		t.mu.Unlock()
		return false
	}
	n.value = nil
	t.count--
	t.mu.Unlock()

	t.prune(topic)
	return true
}

// Len returns the number of topics holding a value.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Snapshot returns every value under prefix, ordered level by level. An
// empty prefix returns the whole tree.
func (t *Tree) Snapshot(prefix string) []Value {
	t.mu.RLock()
	defer t.mu.RUnlock()

	start := t.root
	if prefix != "" {
		start = t.find(strings.TrimSuffix(prefix, separator))
		if start == nil {
			return nil
		}
	}

	var out []Value
	var walk func(*node)
	walk = func(n *node) {
		if n.value != nil {
			out = append(out, *n.value)
		}
		keys := make([]string, 0, len(n.children))
		for k := range n.children {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(n.children[k])
		}
	}
	walk(start)
	return out
}

// Watch returns a channel receiving every inserted value. Slow readers
// miss values rather than block inserts. Call cancel to stop watching.
func (t *Tree) Watch(buffer int) (values <-chan Value, cancel func()) {
	w := &watcher{ch: make(chan Value, buffer)}

	t.watchMu.Lock()
	t.watchers[w] = struct{}{}
	t.watchMu.Unlock()

	var once sync.Once
	return w.ch, func() {
		once.Do(func() {
			t.watchMu.Lock()
			delete(t.watchers, w)
			t.watchMu.Unlock()
			close(w.ch)
		})
	}
}

func (t *Tree) notify(v Value) {
	t.watchMu.Lock()
	defer t.watchMu.Unlock()
	for w := range t.watchers {
		select {
		case w.ch <- v:
		default:
		}
	}
}

// find walks to topic. Requires a lock.
func (t *Tree) find(topic string) *node {
	n := t.root
	for _, part := range strings.Split(topic, separator) {
		child, ok := n.children[part]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// prune removes empty levels along topic, deepest first.
func (t *Tree) prune(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parts := strings.Split(topic, separator)
	path := make([]*node, 0, len(parts)+1)
	n := t.root
	path = append(path, n)
	for _, part := range parts {
		child, ok := n.children[part]
		if !ok {
			return
		}
		n = child
		path = append(path, n)
	}
	for i := len(parts) - 1; i >= 0; i-- {
		child := path[i+1]
		if child.value != nil || len(child.children) > 0 {
			return
		}
		delete(path[i].children, parts[i])
	}
}
