package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/beacon/internal/domain"
	"github.com/MrSnakeDoc/beacon/internal/logger"
	"github.com/MrSnakeDoc/beacon/internal/reconcile"
)

// Runner performs one reconcile pass over the registry.
type Runner interface {
	Run(ctx context.Context, l reconcile.Lister) ([]domain.Service, error)
}

// Poller handles periodic and manually triggered reconcile passes
type Poller struct {
	runner        Runner
	lister        reconcile.Lister
	logger        logger.Logger
	interval      time.Duration
	onPass        func([]domain.Service)
	stopCh        chan struct{}
	doneCh        chan struct{}
	manualTrigger chan struct{}
	stopOnce      sync.Once
}

// NewPoller creates a poller. An interval <= 0 disables the ticker;
// manual triggers are still served.
func NewPoller(
	runner Runner,
	lister reconcile.Lister,
	log logger.Logger,
	interval time.Duration,
) *Poller {
	return &Poller{
		runner:        runner,
		lister:        lister,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
	}
}

// OnPass registers a callback receiving the result of every successful pass.
// Must be called before Start.
func (p *Poller) OnPass(fn func([]domain.Service)) {
	p.onPass = fn
}

// Start begins the background loop. When the ticker is enabled a first pass
// runs immediately.
func (p *Poller) Start(ctx context.Context) {
	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		tick = ticker.C
		go func() {
			<-p.doneCh
			ticker.Stop()
		}()
	}

	go func() {
		defer close(p.doneCh)

		if tick != nil {
			p.Pass(ctx)
		}
		for {
			select {
			case <-tick:
				p.Pass(ctx)
			case <-p.manualTrigger:
				p.logger.Info("manual refresh triggered")
				p.Pass(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Trigger queues a manual pass. It returns false when one is already pending.
func (p *Poller) Trigger() bool {
	select {
	case p.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop ends the loop and waits for an in-flight pass to finish.
// Only valid after Start.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}

// Pass runs a single reconcile pass.
func (p *Poller) Pass(ctx context.Context) {
	start := time.Now()
	services, err := p.runner.Run(ctx, p.lister)
	if err != nil {
		p.logger.Warn("reconcile skipped, registry unavailable",
			logger.Error(err))
		return
	}

	_, offline, _ := domain.Tally(services)
	p.logger.Debug("reconcile pass done",
		logger.Int("services", len(services)),
		logger.Int("offline", offline),
		logger.Duration("took", time.Since(start)))

	if p.onPass != nil {
		p.onPass(services)
	}
}
