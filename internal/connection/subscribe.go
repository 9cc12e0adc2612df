package connection

import "sync"

// Change describes one state transition.
type Change struct {
	From State
	To   State
	// Err is set when the transition was caused by a failure.
	Err error

	seq uint64
}

// Observer is called after every state transition.
type Observer func(change Change)

// observers is a registry of state observers. Observers are called
// synchronously, in subscription order, outside the orchestrator lock.
// Changes are delivered in the order the transitions happened, whichever
// goroutine publishes them.
type observers struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]Observer
	order  []uint64

	turnMu    sync.Mutex
	turn      *sync.Cond
	delivered uint64
}

func newObservers() *observers {
	o := &observers{byID: make(map[uint64]Observer)}
	o.turn = sync.NewCond(&o.turnMu)
	return o
}

func (o *observers) subscribe(fn Observer) func() {
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.byID[id] = fn
	o.order = append(o.order, id)
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { o.unsubscribe(id) })
	}
}

func (o *observers) unsubscribe(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.byID, id)
	for i, v := range o.order {
		if v == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// notify delivers change once every earlier change has been delivered.
// Every sequenced change must be published exactly once.
func (o *observers) notify(change Change) {
	o.turnMu.Lock()
	for change.seq != o.delivered+1 {
		o.turn.Wait()
	}
	o.turnMu.Unlock()
	defer func() {
		o.turnMu.Lock()
		o.delivered = change.seq
		o.turn.Broadcast()
		o.turnMu.Unlock()
	}()

	o.mu.RLock()
	fns := make([]Observer, 0, len(o.order))
	for _, id := range o.order {
		fns = append(fns, o.byID[id])
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}

func (o *observers) clear() {
	o.mu.Lock()
	o.byID = make(map[uint64]Observer)
	o.order = nil
	o.mu.Unlock()
}
