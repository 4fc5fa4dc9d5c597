package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"presale_scraper/config"
	"presale_scraper/models"
)

const commandPollInterval = 2 * time.Second

// Runner is the part of the orchestrator the scheduler drives.
type Runner interface {
	RunAll(ctx context.Context) error
	HandleCommand(ctx context.Context, cmd *models.Command) error
}

// CommandQueue is the pending command table.
type CommandQueue interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
}

type Scheduler struct {
	cfg      config.SchedulerConfig
	runner   Runner
	queue    CommandQueue
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	pollRate time.Duration
}

func New(cfg config.SchedulerConfig, runner Runner, queue CommandQueue) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		queue:    queue,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
		pollRate: commandPollInterval,
	}
}

// Start registers the periodic run and begins polling the command queue.
// Cron takes precedence over the interval; with neither set only commands
// trigger runs.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		if _, err := s.cron.AddFunc(s.cfg.Cron, func() { s.runAll(ctx) }); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.cfg.Cron, err)
		}
		log.WithField("cron", s.cfg.Cron).Info("Starting scheduler")
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.WithField("interval", s.cfg.Interval).Info("Starting scheduler")
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runAll(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Info("No schedule configured, daemon will only respond to commands")
	}

	go s.pollCommands(ctx)
	return nil
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cron.Stop()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

func (s *Scheduler) runAll(ctx context.Context) {
	if err := s.runner.RunAll(ctx); err != nil {
		log.WithError(err).Error("Scheduled run finished with errors")
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(s.pollRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processCommands handles every pending command once. A command is marked
// processed even when it fails so a bad command cannot wedge the queue.
func (s *Scheduler) processCommands(ctx context.Context) int {
	cmds, err := s.queue.GetPendingCommands()
	if err != nil {
		log.WithError(err).Warn("Error getting commands")
		return 0
	}

	for i := range cmds {
		cmd := &cmds[i]
		entry := log.WithFields(log.Fields{"command": cmd.Command, "id": cmd.ID})
		entry.Info("Processing command")
		if err := s.runner.HandleCommand(ctx, cmd); err != nil {
			entry.WithError(err).Error("Command failed")
		}
		if err := s.queue.MarkCommandProcessed(cmd.ID); err != nil {
			entry.WithError(err).Warn("Error marking command processed")
		}
	}
	return len(cmds)
}
