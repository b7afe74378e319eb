package pipeline

import "time"

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type tickerFactory func(time.Duration) ticker

func defaultTickerFactory(interval time.Duration) ticker {
	return &stdTicker{inner: time.NewTicker(interval)}
}

type stdTicker struct {
	inner *time.Ticker
}

func (t *stdTicker) C() <-chan time.Time {
	return t.inner.C
}

func (t *stdTicker) Stop() {
	t.inner.Stop()
}
