package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBroadcastDoesNotWaitOnStalledClient(t *testing.T) {
	notifier := NewAnalysisNotifier()
	// No writer drains this client, so its queue fills and stays full.
	stalled := &wsClient{send: make(chan AnalysisEvent, 1)}
	notifier.mu.Lock()
	notifier.clients[stalled] = struct{}{}
	notifier.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3*clientQueueSize; i++ {
			notifier.Broadcast(AnalysisEvent{Type: "analysis"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a stalled client")
	}
	assert.Len(t, stalled.send, 1)
	assert.Equal(t, 1, notifier.ClientCount())

	notifier.Unregister(stalled)
	assert.Equal(t, 0, notifier.ClientCount())
	notifier.Unregister(stalled)
}
