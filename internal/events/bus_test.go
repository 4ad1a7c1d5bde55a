package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	b := NewBus()
	a := b.Subscribe()
	c := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	b.Publish(Event{Kind: "circle", Action: Created, ID: 3})

	assert.Equal(t, Event{Kind: "circle", Action: Created, ID: 3}, <-a)
	assert.Equal(t, Event{Kind: "circle", Action: Created, ID: 3}, <-c)
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	for i := 0; i < cap(ch)+10; i++ {
		b.Publish(Event{ID: int64(i)})
	}
	assert.Len(t, ch, cap(ch))
}

func TestBusUnsubscribeClosesOnce(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, b.Subscribers())
}

func TestPublisherFunc(t *testing.T) {
	var got []Event
	var p Publisher = PublisherFunc(func(e Event) { got = append(got, e) })
	p.Publish(Event{Action: Deleted})
	assert.Equal(t, []Event{{Action: Deleted}}, got)
}
