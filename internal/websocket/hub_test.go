package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"legal-review-client/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	return h, func() {
		cancel()
		<-done
	}
}

func newClient(h *Hub, buffer int) *Client {
	return &Client{Hub: h, ID: uuid.New(), Send: make(chan []byte, buffer), logger: h.logger}
}

func attach(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := newClient(h, buffer)
	require.True(t, h.Register(c, nil))
	return c
}

func decodeFrame(t *testing.T, raw []byte) Frame {
	t.Helper()
	var f Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	h, _ := startHub(t)
	a, b := attach(t, h, 4), attach(t, h, 4)
	require.Equal(t, 2, h.ClientCount())

	h.Broadcast("state", map[string]string{"status": "running"})

	for _, c := range []*Client{a, b} {
		select {
		case raw := <-c.Send:
			var f struct {
				Type string            `json:"type"`
				Data map[string]string `json:"data"`
			}
			require.NoError(t, json.Unmarshal(raw, &f))
			assert.Equal(t, "state", f.Type)
			assert.Equal(t, "running", f.Data["status"])
		case <-time.After(time.Second):
			t.Fatal("frame not delivered")
		}
	}
}

func TestSlowClientIsDisconnected(t *testing.T) {
	h, _ := startHub(t)
	slow := attach(t, h, 1)
	require.Equal(t, 1, h.ClientCount())

	h.Broadcast("state", 1)
	h.Broadcast("state", 2)

	assert.Equal(t, 0, h.ClientCount())
	<-slow.Send
	_, open := <-slow.Send
	assert.False(t, open, "send channel is closed for dropped clients")
}

func TestInitialFrameIsQueuedOnRegister(t *testing.T) {
	h, _ := startHub(t)

	for i := 0; i < 200; i++ {
		c := newClient(h, 4)
		initial, err := encodeFrame("state", map[string]int{"n": i})
		require.NoError(t, err)
		require.True(t, h.Register(c, initial))

		h.Broadcast("state", map[string]int{"n": -1})

		require.Len(t, c.Send, 2)
		first := decodeFrame(t, <-c.Send)
		assert.Equal(t, "state", first.Type)
		assert.Equal(t, map[string]interface{}{"n": float64(i)}, first.Data)
		h.Unregister(c)
	}
	assert.Equal(t, 0, h.ClientCount())
}

func TestShutdownReleasesClients(t *testing.T) {
	h, stop := startHub(t)
	c := attach(t, h, 4)

	stop()

	_, open := <-c.Send
	assert.False(t, open, "send channel is closed on shutdown")
	assert.Equal(t, 0, h.ClientCount())

	done := make(chan struct{})
	go func() {
		h.Unregister(c)
		assert.False(t, h.Register(newClient(h, 4), nil), "registration is refused after shutdown")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unregister or register blocked after shutdown")
	}
}
