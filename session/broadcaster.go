package session

import (
	"sync"
)

// subscriptionBuffer is how many snapshots a slow subscriber may fall behind before older ones
// are replaced.
const subscriptionBuffer = 2

// broadcaster fans snapshots out to subscribers without ever blocking the sender. When a
// subscriber's buffer is full its oldest pending snapshot is discarded.
type broadcaster struct {
	mu      sync.Mutex
	clients map[int]chan Snapshot
	nextID  int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{clients: make(map[int]chan Snapshot)}
}

func (b *broadcaster) subscribe() (int, <-chan Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Snapshot, subscriptionBuffer)
	b.clients[id] = ch
	return id, ch
}

func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
	}
}

func (b *broadcaster) send(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.clients {
		for {
			select {
			case ch <- snap:
			default:
				// full, drop the oldest and retry
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}
