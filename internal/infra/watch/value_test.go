package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesCurrentValue(t *testing.T) {
	v := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := v.Subscribe(ctx)
	assert.Equal(t, 1, <-ch)

	v.Set(2)
	assert.Equal(t, 2, <-ch)
}

func TestSetConflatesForSlowSubscriber(t *testing.T) {
	v := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := v.Subscribe(ctx)
	for i := 1; i <= 10; i++ {
		v.Set(i) // must not block
	}
	assert.Equal(t, 10, <-ch)
	assert.Equal(t, 10, v.Get())
}

func TestUpdate(t *testing.T) {
	v := New([]string{"a"})
	got := v.Update(func(s []string) []string { return append(s, "b") })
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []string{"a", "b"}, v.Get())
}

func TestSubscriptionClosesOnCancel(t *testing.T) {
	v := New("x")
	ctx, cancel := context.WithCancel(context.Background())
	ch := v.Subscribe(ctx)
	<-ch
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, v.Subscribers())

	v.Set("y") // no panic on closed channel
}
