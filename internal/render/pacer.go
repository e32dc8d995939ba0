package render

import (
	"context"
	"time"
)

// Pacer produces render ticks. Next blocks until the next tick and returns
// the elapsed seconds since Start.
type Pacer interface {
	Start()
	Next(ctx context.Context) (float64, error)
	Stop()
}

// RealtimePacer ticks at FPS against the wall clock. Late or dropped ticks
// are fine; the elapsed value always reflects real time.
type RealtimePacer struct {
	FPS int

	start  time.Time
	ticker *time.Ticker
	first  bool
}

// Start resets the clock.
func (p *RealtimePacer) Start() {
	p.start = time.Now()
	p.ticker = time.NewTicker(time.Second / time.Duration(max(p.FPS, 1)))
	p.first = true
}

// Next waits for the ticker. The first call returns immediately.
func (p *RealtimePacer) Next(ctx context.Context) (float64, error) {
	if p.first {
		p.first = false
		return time.Since(p.start).Seconds(), ctx.Err()
	}
	select {
	case <-p.ticker.C:
		return time.Since(p.start).Seconds(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Stop releases the ticker.
func (p *RealtimePacer) Stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

// VirtualPacer advances a virtual clock by 1/FPS per tick without waiting.
// Schedule, when set, supplies the first elapsed values verbatim; ticks
// after it continue at 1/FPS from its last entry.
type VirtualPacer struct {
	FPS      int
	Schedule []float64

	tick int
	last float64
}

// Start rewinds the clock.
func (p *VirtualPacer) Start() {
	p.tick = 0
	p.last = 0
}

// Next returns the next virtual time.
func (p *VirtualPacer) Next(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var elapsed float64
	switch {
	case p.tick < len(p.Schedule):
		elapsed = p.Schedule[p.tick]
	case len(p.Schedule) > 0:
		elapsed = p.last + 1/float64(max(p.FPS, 1))
	default:
		elapsed = float64(p.tick) / float64(max(p.FPS, 1))
	}
	p.tick++
	p.last = elapsed
	return elapsed, nil
}

// Stop is a no-op.
func (p *VirtualPacer) Stop() {}
