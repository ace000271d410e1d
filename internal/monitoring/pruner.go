package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/taskboard-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Pruner periodically removes activity events older than the retention window.
type Pruner struct {
	eventSvc  services.EventServiceProvider
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

// NewPruner creates a Pruner that runs on the given cron schedule.
func NewPruner(eventSvc services.EventServiceProvider, schedule string, retention time.Duration) (*Pruner, error) {
	p := &Pruner{
		eventSvc:  eventSvc,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
	if _, err := p.cron.AddFunc(schedule, p.runOnce); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start begins running the schedule in the background.
func (p *Pruner) Start() {
	log.Info().Dur("retention", p.retention).Msg("Starting event pruner")
	p.cron.Start()
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
	log.Info().Msg("Stopped event pruner")
}

func (p *Pruner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := p.Prune(ctx); err != nil {
		log.Error().Err(err).Msg("Event pruning failed")
	}
}

// Prune deletes events older than the retention window and returns how many went.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.eventSvc.PruneEvents(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned old events")
	}
	return n, nil
}
