package storage

type EventKind string

const (
	EventConfig    EventKind = "config"
	EventResults   EventKind = "results"
	EventCrawls    EventKind = "crawls"
	EventSnapshots EventKind = "snapshots"
	EventQueries   EventKind = "queries"
	EventLabels    EventKind = "labels"
	EventCleared   EventKind = "cleared"
	EventKV        EventKind = "kv"
)

// Event announces a committed mutation.
type Event struct {
	Kind EventKind `json:"kind"`
	Key  string    `json:"key,omitempty"`
}

// Subscribe registers fn for every committed mutation. Callbacks run
// synchronously on the writer's goroutine and must not write to the DB.
func (d *DB) Subscribe(fn func(Event)) (cancel func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

func (d *DB) publish(ev Event) {
	d.mu.Lock()
	fns := make([]func(Event), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
