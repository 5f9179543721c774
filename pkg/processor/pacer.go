package processor

import (
	"context"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// Pacing holds the fixed delays between provider calls and between queries.
// Slow platforms get the longer delays.
type Pacing struct {
	CallDelay      time.Duration
	SlowCallDelay  time.Duration
	QueryDelay     time.Duration
	SlowQueryDelay time.Duration
	Slow           []model.Platform
}

// DefaultPacing throttles ChatGPT harder than the other platforms.
func DefaultPacing() Pacing {
	return Pacing{
		CallDelay:      time.Second,
		SlowCallDelay:  3 * time.Second,
		QueryDelay:     2 * time.Second,
		SlowQueryDelay: 5 * time.Second,
		Slow:           []model.Platform{model.ChatGPT},
	}
}

// Pacer lets one provider call run at a time and sleeps the configured
// delays in between. The zero Pacing never sleeps.
type Pacer struct {
	pacing Pacing
	sem    chan struct{}
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPacer(p Pacing) *Pacer {
	return &Pacer{
		pacing: p,
		sem:    make(chan struct{}, 1),
		sleep:  sleepCtx,
	}
}

func (p *Pacer) slow(platform model.Platform) bool {
	for _, s := range p.pacing.Slow {
		if s == platform {
			return true
		}
	}
	return false
}

// Call runs fn while holding the pacer's single slot.
func (p *Pacer) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()
	return fn(ctx)
}

// AfterCall waits the inter-call delay that follows a call to platform.
func (p *Pacer) AfterCall(ctx context.Context, platform model.Platform) error {
	d := p.pacing.CallDelay
	if p.slow(platform) {
		d = p.pacing.SlowCallDelay
	}
	return p.sleep(ctx, d)
}

// BetweenQueries waits the inter-query delay. It is the longer one when any
// of the active platforms is slow.
func (p *Pacer) BetweenQueries(ctx context.Context, active []model.Platform) error {
	d := p.pacing.QueryDelay
	for _, platform := range active {
		if p.slow(platform) {
			d = p.pacing.SlowQueryDelay
			break
		}
	}
	return p.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
