package executor

import (
	"sync"
	"time"
)

// Ticker drives the simulated progress of one running job.
type Ticker interface {
	// Start calls onTick periodically until Stop.
	Start(onTick func())
	// Stop cancels the ticker; no onTick call starts after Stop returns.
	Stop()
}

// TickerFactory creates a fresh Ticker per run.
type TickerFactory func() Ticker

// IntervalTickers returns a factory of time.Ticker based tickers.
func IntervalTickers(interval time.Duration) TickerFactory {
	return func() Ticker {
		return &intervalTicker{
			interval: interval,
			stop:     make(chan struct{}),
			done:     make(chan struct{}),
		}
	}
}

type intervalTicker struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	started  bool
	once     sync.Once
}

func (t *intervalTicker) Start(onTick func()) {
	t.started = true
	go func() {
		defer close(t.done)

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				select {
				case <-t.stop:
					return
				default:
				}
				onTick()
			}
		}
	}()
}

func (t *intervalTicker) Stop() {
	t.once.Do(func() {
		close(t.stop)
		if t.started {
			<-t.done
		}
	})
}
