package journal

import (
	"context"
	"time"

	"github.com/roach88/mindmark/internal/marker"
)

// Sink adapts a Store to the marker.Sink interface so delivered markers
// are journaled alongside whatever live stream the session pushes to.
type Sink struct {
	store *Store
	token string
}

// NewSink creates a journaling sink for one session. BeginSession must
// have been called for the token already.
func NewSink(store *Store, sessionToken string) *Sink {
	return &Sink{store: store, token: sessionToken}
}

// Push journals the marker. Uses a short timeout so a slow disk cannot
// stall the frame loop; a failed append surfaces as a delivery error,
// which the adapter logs without interrupting the session.
func (s *Sink) Push(ev marker.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	return s.store.Append(ctx, Record{
		SessionToken: s.token,
		Seq:          ev.Seq,
		Label:        ev.Label,
		Offset:       ev.Offset,
		WallTime:     time.Now(),
	})
}
