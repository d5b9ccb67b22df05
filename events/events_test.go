package events

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pingEvent struct{ n int }
type pongEvent struct{ n int }

func TestSubscribeEmit(t *testing.T) {
	var pings, pongs atomic.Int32
	ping := Subscribe(func(e pingEvent) { pings.Add(int32(e.n)) })
	pong := Subscribe(func(e pongEvent) { pongs.Add(int32(e.n)) })
	defer Unsubscribe(pong)

	Emit(pingEvent{n: 2})
	assert.Eventually(t, func() bool { return pings.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, pongs.Load())

	Unsubscribe(ping)
	EmitSync(pingEvent{n: 5})
	assert.Equal(t, int32(2), pings.Load())

	EmitSync(pongEvent{n: 3})
	assert.Equal(t, int32(3), pongs.Load())
}

func TestUnsubscribeNil(t *testing.T) {
	assert.NotPanics(t, func() { Unsubscribe[pingEvent](nil) })
}
