// internal/notify/local.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const (
	defaultInboxSize = 100
	subscriberBuffer = 32
)

// LocalGateway delivers within a single process. Users with a live
// subscription get the payload immediately; everyone else has it queued in
// a bounded inbox that is flushed on their next Subscribe.
type LocalGateway struct {
	mu        sync.Mutex
	subs      map[uuid.UUID]map[chan []byte]struct{}
	inbox     map[uuid.UUID][][]byte
	inboxSize int
}

// NewLocalGateway returns an empty in-process gateway.
func NewLocalGateway() *LocalGateway {
	return &LocalGateway{
		subs:      make(map[uuid.UUID]map[chan []byte]struct{}),
		inbox:     make(map[uuid.UUID][][]byte),
		inboxSize: defaultInboxSize,
	}
}

// Deliver pushes payload to every user id and returns how many users it
// was handed to (live or queued).
func (g *LocalGateway) Deliver(ctx context.Context, userIDs []uuid.UUID, payload Payload) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	delivered := 0
	for _, uid := range userIDs {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		live := false
		for ch := range g.subs[uid] {
			select {
			case ch <- data:
				live = true
			default:
				// subscriber is full; fall through to the inbox
			}
		}
		if !live {
			g.enqueueLocked(uid, data)
		}
		delivered++
	}
	return delivered, nil
}

func (g *LocalGateway) enqueueLocked(uid uuid.UUID, data []byte) {
	q := append(g.inbox[uid], data)
	if len(q) > g.inboxSize {
		q = q[len(q)-g.inboxSize:]
	}
	g.inbox[uid] = q
}

// Subscribe registers a live listener for userID until ctx is done. Queued
// payloads are replayed first.
func (g *LocalGateway) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan []byte, error) {
	g.mu.Lock()
	pending := g.inbox[userID]
	delete(g.inbox, userID)

	ch := make(chan []byte, subscriberBuffer+len(pending))
	for _, p := range pending {
		ch <- p
	}
	if g.subs[userID] == nil {
		g.subs[userID] = make(map[chan []byte]struct{})
	}
	g.subs[userID][ch] = struct{}{}
	g.mu.Unlock()

	go func() {
		<-ctx.Done()
		g.mu.Lock()
		delete(g.subs[userID], ch)
		if len(g.subs[userID]) == 0 {
			delete(g.subs, userID)
		}
		close(ch)
		g.mu.Unlock()
	}()
	return ch, nil
}
