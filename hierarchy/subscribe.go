package hierarchy

import "github.com/mtkira/weavetext/opid"

func (h *Hierarchy) nextSubID() SubscriptionID {
	id := h.nextID
	h.nextID++
	return id
}

// Subscribe registers observer on container: shallow (fires only for
// events whose target is exactly container) unless deep is true (fires
// for events on container or any of its descendants, with the path
// rewritten relative to container).
func (h *Hierarchy) Subscribe(container opid.ContainerID, observer Observer, deep bool) SubscriptionID {
	id := h.nextSubID()
	n := h.entry(container)
	if deep {
		n.deepObservers[id] = struct{}{}
	} else {
		n.observers[id] = struct{}{}
	}
	h.observers[id] = observer
	return id
}

// Unsubscribe removes a shallow or deep subscription registered on
// container. During dispatch, removal is deferred to the drain step so
// the in-flight observer table isn't mutated mid-iteration; Unsubscribe
// still returns true immediately since the subscription is guaranteed not
// to fire again.
func (h *Hierarchy) Unsubscribe(container opid.ContainerID, id SubscriptionID) bool {
	n, ok := h.nodes[container]
	if !ok {
		return false
	}
	if _, found := n.observers[id]; found {
		delete(n.observers, id)
		h.deferDelete(id)
		return true
	}
	if _, found := n.deepObservers[id]; found {
		delete(n.deepObservers, id)
		h.deferDelete(id)
		return true
	}
	return false
}

// SubscribeRoot registers observer to fire on every event in the
// hierarchy, with the absolute path to the event's real target.
func (h *Hierarchy) SubscribeRoot(observer Observer) SubscriptionID {
	id := h.nextSubID()
	h.rootObservers[id] = struct{}{}
	h.observers[id] = observer
	return id
}

// UnsubscribeRoot removes a root subscription.
func (h *Hierarchy) UnsubscribeRoot(id SubscriptionID) bool {
	if _, ok := h.rootObservers[id]; !ok {
		return false
	}
	delete(h.rootObservers, id)
	h.deferDelete(id)
	return true
}

func (h *Hierarchy) deferDelete(id SubscriptionID) {
	if h.calling {
		h.deletedObservers = append(h.deletedObservers, id)
	} else {
		delete(h.observers, id)
	}
}
