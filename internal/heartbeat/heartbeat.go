// Package heartbeat is a named-topic notification registry. A machine posts
// a topic ("stop") when something other machines may care about happened;
// listeners registered on the topic are called synchronously.
//
// The registry holds no lock while listeners run, so a listener may register,
// unregister or notify from inside its callback.
package heartbeat

import (
	"sync"
)

// Listener is called with the notified topic.
type Listener func(topic string)

type entry struct {
	id int
	fn Listener
}

// Registry maps topics to listeners. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string][]entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[string][]entry)}
}

// Register adds fn to topic and returns a function that removes it again.
// Calling the returned function more than once is a no-op.
func (r *Registry) Register(topic string, fn Listener) (unregister func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.listeners[topic] = append(r.listeners[topic], entry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(topic, id) })
	}
}

func (r *Registry) remove(topic string, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.listeners[topic]
	for i, e := range entries {
		if e.id == id {
			kept := make([]entry, 0, len(entries)-1)
			kept = append(kept, entries[:i]...)
			kept = append(kept, entries[i+1:]...)
			r.listeners[topic] = kept
			break
		}
	}
	if len(r.listeners[topic]) == 0 {
		delete(r.listeners, topic)
	}
}

// Notify calls every listener of topic in registration order and returns how
// many were called.
func (r *Registry) Notify(topic string) int {
	r.mu.Lock()
	entries := r.listeners[topic]
	r.mu.Unlock()

	for _, e := range entries {
		e.fn(topic)
	}
	return len(entries)
}
