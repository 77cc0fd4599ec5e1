package automate

import (
	"context"
	"errors"
	"sync"
)

// Outcome is the resolution of an asynchronous, user-driven form submission.
type Outcome int

const (
	// OutcomeSaved means the save confirmation was observed.
	OutcomeSaved Outcome = iota

	// OutcomeNavigatedAway means the user left the form before saving.
	OutcomeNavigatedAway
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeNavigatedAway:
		return "navigated-away"
	default:
		return "unknown"
	}
}

// Observer is one completion signal in a race. Wait blocks until the signal
// resolves or ctx is cancelled; observers must be cooperative so the loser
// can be cancelled promptly without touching the shared page.
type Observer struct {
	Outcome Outcome
	Wait    func(ctx context.Context) error
}

// Race runs the observers concurrently and blocks until the first one
// resolves. The winner determines the result; the losers are cancelled, and
// their cancellation is awaited before Race returns so no orphaned observer
// keeps touching a page that is about to be closed.
//
// The first resolution wins even when it is an error: a failing observer
// resolves the race as a failure rather than propagating.
func Race(ctx context.Context, observers ...Observer) (Outcome, error) {
	if len(observers) == 0 {
		return 0, errors.New("no observers to race")
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type resolution struct {
		outcome Outcome
		err     error
	}

	results := make(chan resolution, len(observers))
	var wg sync.WaitGroup

	for _, observer := range observers {
		observer := observer
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := observer.Wait(raceCtx)
			if err != nil && raceCtx.Err() != nil {
				// Cancelled loser: not a resolution.
				return
			}
			results <- resolution{outcome: observer.Outcome, err: err}
		}()
	}

	var winner resolution
	select {
	case winner = <-results:
	case <-ctx.Done():
		winner = resolution{err: ctx.Err()}
	}
	cancel()
	wg.Wait()

	if winner.err != nil {
		return 0, winner.err
	}
	return winner.outcome, nil
}
