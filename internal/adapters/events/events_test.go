package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	b := NewBus(2)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	assert.Equal(t, 2, b.Subscribers())

	require.NoError(t, b.Publish(context.Background(), []byte("one")))
	assert.Equal(t, []byte("one"), <-s1)
	assert.Equal(t, []byte("one"), <-s2)

	b.Unsubscribe(s1)
	_, open := <-s1
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers())
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBus(1)
	sub := b.Subscribe()

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(context.Background(), []byte{byte(i)}))
	}
	assert.Equal(t, []byte{0}, <-sub)
	select {
	case extra := <-sub:
		t.Fatalf("unexpected buffered payload %v", extra)
	default:
	}
}

func TestBusClose(t *testing.T) {
	b := NewBus(1)
	sub := b.Subscribe()
	b.Close()
	_, open := <-sub
	assert.False(t, open)

	late := b.Subscribe()
	_, open = <-late
	assert.False(t, open)
	assert.NoError(t, b.Publish(context.Background(), []byte("x")))
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	ps := rdb.Subscribe(ctx, "fleet:simulation")
	defer ps.Close()
	_, err := ps.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(rdb, "fleet:simulation")
	require.NoError(t, pub.Publish(ctx, []byte(`{"currentTimeMs":1000}`)))

	select {
	case msg := <-ps.Channel():
		assert.Equal(t, `{"currentTimeMs":1000}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient("not a url")
	assert.Error(t, err)
}
