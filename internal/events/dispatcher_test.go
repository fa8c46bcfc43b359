package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []Event
	d.Subscribe(EventTicketCreated, func(ctx context.Context, event Event) error {
		got = append(got, event)
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "TKT-A"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "TKT-A", got[0].TicketID)

	// Events of other types are not delivered.
	err = d.Publish(context.Background(), Event{Type: EventTicketClosed, TicketID: "TKT-B"})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestDispatcherFailingHandlerDoesNotBlockOthers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var calls int
	d.Subscribe(EventTicketClosed, func(ctx context.Context, event Event) error {
		calls++
		return errors.New("handler failure")
	})
	d.Subscribe(EventTicketClosed, func(ctx context.Context, event Event) error {
		calls++
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketClosed}))
	require.Equal(t, 2, calls)
}
