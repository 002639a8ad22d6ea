package redisrepo

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyAndChannelNames(t *testing.T) {
	assert.Equal(t, "driver:location:driver-1", locationKey("driver-1"))
	assert.Equal(t, "driver_updates:driver-1", channelName("driver-1"))
}

func TestRelayForwardsPayloads(t *testing.T) {
	in := make(chan *redis.Message)
	out := make(chan []byte, 16)

	go relay(in, out)

	in <- &redis.Message{Payload: `{"latitude":16.9891,"longitude":82.2475}`}
	close(in)

	got := drain(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, `{"latitude":16.9891,"longitude":82.2475}`, string(got[0]))
}

// A tracker that stops reading must not wedge the relay: once the buffer
// is full further updates are dropped and closing the input still
// terminates the goroutine and closes the output.
func TestRelayDropsWhenReceiverLags(t *testing.T) {
	in := make(chan *redis.Message)
	out := make(chan []byte, 2)

	done := make(chan struct{})
	go func() {
		relay(in, out)
		close(done)
	}()

	for _, payload := range []string{"p0", "p1", "p2", "p3", "p4"} {
		in <- &redis.Message{Payload: payload}
	}
	close(in)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not terminate with a lagging receiver")
	}

	got := drain(t, out)
	require.Len(t, got, 2)
	assert.Equal(t, "p0", string(got[0]))
	assert.Equal(t, "p1", string(got[1]))
}

func TestRelayClosesOutputWhenInputCloses(t *testing.T) {
	in := make(chan *redis.Message)
	out := make(chan []byte, 16)

	go relay(in, out)
	close(in)

	select {
	case _, ok := <-out:
		assert.False(t, ok, "output must be closed, not carry a value")
	case <-time.After(time.Second):
		t.Fatal("output was not closed")
	}
}

func drain(t *testing.T, ch <-chan []byte) [][]byte {
	t.Helper()

	var got [][]byte
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, msg)
		case <-time.After(time.Second):
			t.Fatal("channel did not close")
		}
	}
}
