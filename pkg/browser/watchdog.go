package browser

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/entrhq/pricescout/pkg/config"
	"github.com/entrhq/pricescout/pkg/logging"
)

// watchdog polls the browser's remote-debugging health endpoint. The browser
// is the source of truth for session validity: once the configured number of
// consecutive probes fail, the browser is assumed closed by the user and the
// process is stopped hard. In-flight work is not cleaned up on that path.
type watchdog struct {
	interval  time.Duration
	threshold int
	log       *logging.Logger

	check  func() error
	onDead func()

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	deadOnce sync.Once
}

func newWatchdog(cfg config.WatchdogConfig, log *logging.Logger, check func() error, onDead func()) *watchdog {
	return &watchdog{
		interval:  cfg.PollInterval,
		threshold: cfg.FailureThreshold,
		log:       log,
		check:     check,
		onDead:    onDead,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// start begins polling in the background.
func (w *watchdog) start() {
	go w.run()
}

// stop halts polling and waits for the poll loop to exit. Idempotent.
func (w *watchdog) stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	<-w.done
}

func (w *watchdog) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-w.stopCh:
			w.log.Debugf("watchdog stopped")
			return
		case <-ticker.C:
			if err := w.check(); err != nil {
				failures++
				w.log.Warnf("browser health probe failed (%d/%d): %v", failures, w.threshold, err)
				if failures >= w.threshold {
					w.log.Errorf("browser closed or CDP endpoint unreachable, shutting down")
					w.deadOnce.Do(w.onDead)
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// probeEndpoint returns a health check that performs a single GET against the
// CDP version endpoint. Any non-success response or connection error counts
// as a failed probe.
func probeEndpoint(endpoint string, timeout time.Duration) func() error {
	client := &http.Client{Timeout: timeout}
	return func() error {
		resp, err := client.Get(endpoint)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("CDP endpoint returned status %d", resp.StatusCode)
		}
		return nil
	}
}
