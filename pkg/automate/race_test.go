package automate

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signalObserver resolves when its trigger channel closes, and records
// whether it was cancelled and whether its goroutine exited.
type signalObserver struct {
	outcome   Outcome
	trigger   chan struct{}
	cancelled atomic.Bool
	exited    atomic.Bool
}

func newSignalObserver(outcome Outcome) *signalObserver {
	return &signalObserver{outcome: outcome, trigger: make(chan struct{})}
}

func (o *signalObserver) observer() Observer {
	return Observer{
		Outcome: o.outcome,
		Wait: func(ctx context.Context) error {
			defer o.exited.Store(true)
			select {
			case <-o.trigger:
				return nil
			case <-ctx.Done():
				o.cancelled.Store(true)
				return ctx.Err()
			}
		},
	}
}

func TestRace_SavedWinsAndLoserIsCancelled(t *testing.T) {
	saved := newSignalObserver(OutcomeSaved)
	navigated := newSignalObserver(OutcomeNavigatedAway)

	close(saved.trigger)

	outcome, err := Race(context.Background(), saved.observer(), navigated.observer())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, outcome)

	// Race returned, so the loser must already be cancelled and exited.
	assert.True(t, navigated.cancelled.Load(), "losing observer must be cancelled")
	assert.True(t, navigated.exited.Load(), "losing observer must not be left running")
}

func TestRace_NavigatedAwayWins(t *testing.T) {
	saved := newSignalObserver(OutcomeSaved)
	navigated := newSignalObserver(OutcomeNavigatedAway)

	close(navigated.trigger)

	outcome, err := Race(context.Background(), saved.observer(), navigated.observer())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNavigatedAway, outcome)

	assert.True(t, saved.cancelled.Load())
	assert.True(t, saved.exited.Load())
}

func TestRace_SlowLoserDoesNotChangeOutcome(t *testing.T) {
	fast := newSignalObserver(OutcomeSaved)
	slow := newSignalObserver(OutcomeNavigatedAway)

	close(fast.trigger)
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(slow.trigger)
	}()

	outcome, err := Race(context.Background(), fast.observer(), slow.observer())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, outcome)
}

func TestRace_ObserverErrorResolvesAsFailure(t *testing.T) {
	failing := Observer{
		Outcome: OutcomeSaved,
		Wait: func(ctx context.Context) error {
			return fmt.Errorf("page was closed")
		},
	}
	never := newSignalObserver(OutcomeNavigatedAway)

	_, err := Race(context.Background(), failing, never.observer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page was closed")
	assert.True(t, never.exited.Load())
}

func TestRace_OuterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	saved := newSignalObserver(OutcomeSaved)
	navigated := newSignalObserver(OutcomeNavigatedAway)

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := Race(ctx, saved.observer(), navigated.observer())
	assert.Error(t, err)
}

func TestRace_NoObservers(t *testing.T) {
	_, err := Race(context.Background())
	assert.Error(t, err)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "saved", OutcomeSaved.String())
	assert.Equal(t, "navigated-away", OutcomeNavigatedAway.String())
}
