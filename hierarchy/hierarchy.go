// Package hierarchy tracks container parentage and routes change events to
// subscribers, with reentrancy-safe dispatch: an observer may itself
// trigger a mutation that produces more events while the first batch is
// still being delivered, and those are queued rather than interleaved.
//
// Grounded directly on original_source/crates/loro-internal/src/hierarchy.rs:
// the Node/children/observers/deep_observers shape, should_notify's early-
// exit walk, and the calling/pending_dispatches reentrancy protocol are all
// ports of that file, reworked from Rust's Arc<Mutex<Hierarchy>> plus a
// free function (notify_without_lock) into a receiver method, since this
// engine already serializes all of a replica's work behind one coarse
// lock that the caller releases before calling Notify (see replica).
package hierarchy

import (
	"sort"

	"github.com/mtkira/weavetext/opid"
)

// node holds one container's place in the tree plus its own subscriber
// sets. The zero value is a childless, parentless, unsubscribed node,
// matching Rust's #[derive(Default)].
type node struct {
	parent       opid.ContainerID
	hasParent    bool
	children     map[opid.ContainerID]struct{}
	observers    map[SubscriptionID]struct{}
	deepObservers map[SubscriptionID]struct{}
}

// Hierarchy is one replica's container tree and observer table.
type Hierarchy struct {
	observers     map[SubscriptionID]Observer
	nodes         map[opid.ContainerID]*node
	rootObservers map[SubscriptionID]struct{}
	latestDeleted map[opid.ContainerID]struct{}
	nextID        SubscriptionID

	calling          bool
	deletedObservers []SubscriptionID
	pendingEvent     *Event
	pendingDispatch  []eventDispatch
}

// New returns an empty Hierarchy with no containers and no subscribers.
func New() *Hierarchy {
	return &Hierarchy{
		observers:     make(map[SubscriptionID]Observer),
		nodes:         make(map[opid.ContainerID]*node),
		rootObservers: make(map[SubscriptionID]struct{}),
		latestDeleted: make(map[opid.ContainerID]struct{}),
	}
}

func (h *Hierarchy) entry(id opid.ContainerID) *node {
	n, ok := h.nodes[id]
	if !ok {
		n = &node{
			children:      make(map[opid.ContainerID]struct{}),
			observers:     make(map[SubscriptionID]struct{}),
			deepObservers: make(map[SubscriptionID]struct{}),
		}
		h.nodes[id] = n
	}
	return n
}

// IsEmpty reports whether the hierarchy has no registered containers.
func (h *Hierarchy) IsEmpty() bool { return len(h.nodes) == 0 }

// Contains reports whether id is a known container: either explicitly
// registered, or a root (roots are addressable before their first child is
// ever added).
func (h *Hierarchy) Contains(id opid.ContainerID) bool {
	if _, ok := h.nodes[id]; ok {
		return true
	}
	return id.IsRoot()
}

// AddChild registers child as a child of parent, creating either node if
// it doesn't exist yet.
func (h *Hierarchy) AddChild(parent, child opid.ContainerID) {
	h.entry(parent).children[child] = struct{}{}
	c := h.entry(child)
	c.parent, c.hasParent = parent, true
}

// HasChildren reports whether id has any registered children.
func (h *Hierarchy) HasChildren(id opid.ContainerID) bool {
	n, ok := h.nodes[id]
	return ok && len(n.children) > 0
}

// RemoveChild detaches child from parent and recursively drops every
// descendant of child from the tree, recording them all as newly deleted
// (see TakeDeleted). Each dropped node takes its shallow and deep
// subscription sets with it, so Notify no longer reaches observers that
// were registered on the detached subtree; their callbacks stay in the
// observer table.
func (h *Hierarchy) RemoveChild(parent, child opid.ContainerID) {
	p, ok := h.nodes[parent]
	if !ok {
		return
	}
	delete(p.children, child)

	visited := make(map[opid.ContainerID]struct{})
	stack := []opid.ContainerID{child}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		if n, ok := h.nodes[id]; ok {
			for c := range n.children {
				stack = append(stack, c)
			}
		}
	}
	for id := range visited {
		delete(h.nodes, id)
		h.latestDeleted[id] = struct{}{}
	}
}

// TakeDeleted drains and returns the set of containers detached since the
// last call.
func (h *Hierarchy) TakeDeleted() []opid.ContainerID {
	out := make([]opid.ContainerID, 0, len(h.latestDeleted))
	for id := range h.latestDeleted {
		out = append(out, id)
	}
	h.latestDeleted = make(map[opid.ContainerID]struct{})
	return out
}

// GetPathLen returns the number of registered containers on the walk from
// id up to its root, id and the root both included, or false if id has
// been detached (the walk never reaches a root).
func (h *Hierarchy) GetPathLen(id opid.ContainerID) (int, bool) {
	length := 0
	current := id
	for {
		n, ok := h.nodes[current]
		if !ok {
			break
		}
		length++
		if !n.hasParent {
			break
		}
		current = n.parent
	}
	if current.IsRoot() {
		return length, true
	}
	return 0, false
}

// GetAbsPath returns the path from the root down to descendant, or false
// if descendant has been detached. A root's absolute path is the single
// segment KeyIndex(name).
func (h *Hierarchy) GetAbsPath(reg ContainerIndexer, descendant opid.ContainerID) (Path, bool) {
	path, ok := h.getPath(reg, descendant, opid.ContainerID{}, false)
	if !ok || len(path) == 0 {
		return nil, false
	}
	return path, true
}

// GetPath walks from descendant up to target, returning the path of Index
// segments in root-to-descendant order. It returns false if the walk hits
// a detached container before reaching target or a root.
func (h *Hierarchy) GetPath(reg ContainerIndexer, descendant, target opid.ContainerID) (Path, bool) {
	return h.getPath(reg, descendant, target, true)
}

// getPath is the shared walk behind GetPath (hasTarget=true, stop early at
// target) and GetAbsPath (hasTarget=false, walk all the way to the root).
func (h *Hierarchy) getPath(reg ContainerIndexer, descendant, target opid.ContainerID, hasTarget bool) (Path, bool) {
	if descendant.IsRoot() {
		return Path{KeyIndex(descendant.Name())}, true
	}
	if hasTarget && target == descendant {
		return Path{}, true
	}

	var path Path
	current, ok := descendant, true
	for ok {
		n, exists := h.nodes[current]
		if !exists {
			if current.IsRoot() {
				path = append(path, KeyIndex(current.Name()))
				break
			}
			return nil, false // detached node
		}
		if n.hasParent {
			idx, found := reg.IndexOfChild(n.parent, current)
			if !found {
				return nil, false
			}
			path = append(path, idx)
		} else if current.IsRoot() {
			path = append(path, KeyIndex(current.Name()))
		} else {
			return nil, false
		}

		if hasTarget && n.hasParent && n.parent == target {
			break
		}
		current, ok = n.parent, n.hasParent
	}

	reversePath(path)
	return path, true
}

func reversePath(p Path) {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}

// ShouldNotify reports whether any observer — root, a deep observer on an
// ancestor, or a shallow observer on id itself — would fire for an event
// on id. Containers call this before building a diff, to skip the work
// entirely when nobody's listening.
func (h *Hierarchy) ShouldNotify(id opid.ContainerID) bool {
	if len(h.rootObservers) > 0 {
		return true
	}
	current, ok := id, true
	for ok {
		n, exists := h.nodes[current]
		if !exists {
			if current.IsRoot() {
				break
			}
			return false // detached node
		}
		if len(n.deepObservers) > 0 {
			return true
		}
		current, ok = n.parent, n.hasParent
	}
	if n, exists := h.nodes[id]; exists {
		return len(n.observers) > 0
	}
	return false
}

// sortedIDs is a small helper so tests (and deterministic dispatch order
// within one dispatch bucket) don't depend on Go's randomized map order.
func sortedIDs(set map[SubscriptionID]struct{}) []SubscriptionID {
	out := make([]SubscriptionID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
