package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHub struct {
	mu             sync.Mutex
	subs           map[string][]*fakeSub
	subscribeCalls int
}

func newFakeHub() *fakeHub {
	return &fakeHub{subs: make(map[string][]*fakeSub)}
}

type fakeSub struct {
	hub      *fakeHub
	driverID string
	ch       chan []byte
	once     sync.Once
}

func (s *fakeSub) Messages() <-chan []byte { return s.ch }

func (s *fakeSub) Close() error {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})

	return nil
}

func (h *fakeHub) Subscribe(_ context.Context, driverID string) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscribeCalls++
	sub := &fakeSub{hub: h, driverID: driverID, ch: make(chan []byte, 8)}
	h.subs[driverID] = append(h.subs[driverID], sub)

	return sub, nil
}

func (h *fakeHub) remove(target *fakeSub) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[target.driverID]
	for i, sub := range subs {
		if sub == target {
			h.subs[target.driverID] = append(subs[:i], subs[i+1:]...)

			return
		}
	}
}

func (h *fakeHub) publish(driverID string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[driverID] {
		sub.ch <- payload
	}
}

func (h *fakeHub) count(driverID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs[driverID])
}

func (h *fakeHub) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.subscribeCalls
}

func newTestServer(t *testing.T) (*fakeHub, *httptest.Server) {
	t.Helper()
	hub := newFakeHub()
	srv := httptest.NewServer(NewGateway(hub))
	t.Cleanup(srv.Close)

	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func waitForSubs(t *testing.T, hub *fakeHub, driverID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.count(driverID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("driver %s never reached %d subscriptions", driverID, want)
}

func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	return msg
}

func TestMalformedPathClosesWith1008(t *testing.T) {
	hub, srv := newTestServer(t)

	for _, path := range []string{"/track/", "/nonsense", "/track/d1/extra"} {
		t.Run(path, func(t *testing.T) {
			conn := dial(t, srv, path)
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

			_, _, err := conn.ReadMessage()
			require.Error(t, err)
			assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation),
				"expected close code 1008, got %v", err)
		})
	}

	assert.Zero(t, hub.calls(), "no subscription may be created for a rejected path")
}

func TestFanOutToAllTrackersOfSameDriver(t *testing.T) {
	hub, srv := newTestServer(t)

	first := dial(t, srv, "/track/d1")
	second := dial(t, srv, "/track/d1")
	waitForSubs(t, hub, "d1", 2)

	payload := []byte(`{"latitude":1.0,"longitude":2.0}`)
	hub.publish("d1", payload)

	assert.Equal(t, payload, readMessage(t, first))
	assert.Equal(t, payload, readMessage(t, second))
}

func TestTrackerOfOtherDriverReceivesNothing(t *testing.T) {
	hub, srv := newTestServer(t)

	tracked := dial(t, srv, "/track/d1")
	other := dial(t, srv, "/track/d2")
	waitForSubs(t, hub, "d1", 1)
	waitForSubs(t, hub, "d2", 1)

	payload := []byte(`{"latitude":1.0,"longitude":2.0}`)
	hub.publish("d1", payload)

	assert.Equal(t, payload, readMessage(t, tracked))

	require.NoError(t, other.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := other.ReadMessage()
	require.Error(t, err, "tracker of d2 must not receive d1 updates")
}

func TestSubscriptionReleasedOnClientDisconnect(t *testing.T) {
	hub, srv := newTestServer(t)

	conn := dial(t, srv, "/track/d1")
	waitForSubs(t, hub, "d1", 1)

	require.NoError(t, conn.Close())
	waitForSubs(t, hub, "d1", 0)
}

func TestParseTrackPath(t *testing.T) {
	cases := []struct {
		path   string
		wantID string
		wantOK bool
	}{
		{"/track/d1", "d1", true},
		{"/track/driver-42", "driver-42", true},
		{"/track/", "", false},
		{"/track", "", false},
		{"/nonsense", "", false},
		{"/track/d1/extra", "", false},
		{"/", "", false},
	}

	for _, tc := range cases {
		id, ok := parseTrackPath(tc.path)
		assert.Equal(t, tc.wantOK, ok, tc.path)
		assert.Equal(t, tc.wantID, id, tc.path)
	}
}
