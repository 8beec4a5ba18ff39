package meter

import "time"

// Ticker is the part of time.Ticker the controller uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates the recording tickers; tests swap in manual ones.
type TickerFactory interface {
	NewTicker(d time.Duration) Ticker
}

// RealTickers creates time.Ticker backed tickers.
type RealTickers struct{}

func (RealTickers) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// tickC returns nil for a nil ticker so its select case never fires.
func tickC(t Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C()
}
