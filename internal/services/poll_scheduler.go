package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
)

const (
	pollSoftTimeout = 2 * time.Minute
	pollHardTimeout = 3 * time.Minute
	pollMaxRetries  = 3
)

// PollScheduler runs the inbox reply matcher on a fixed cadence
type PollScheduler struct {
	replyService *ReplyService
	logService   *LogService
	interval     time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}

	cycle sync.Mutex
}

// NewPollScheduler creates a new poll scheduler
func NewPollScheduler(replyService *ReplyService, logService *LogService, interval time.Duration) *PollScheduler {
	return &PollScheduler{
		replyService: replyService,
		logService:   logService,
		interval:     interval,
	}
}

// Start launches the scheduler loop
func (s *PollScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	go s.run()
	log.Printf("[PollScheduler] Started with interval %s", s.interval)
}

// Stop signals the scheduler loop to exit
func (s *PollScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopChan)
	log.Printf("[PollScheduler] Stopped")
}

func (s *PollScheduler) run() {
	s.RunCycle(context.Background())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunCycle(context.Background())
		}
	}
}

// RunCycle polls the inbox once, retrying unexpected failures
func (s *PollScheduler) RunCycle(ctx context.Context) {
	if !s.cycle.TryLock() {
		log.Printf("[PollScheduler] Previous cycle still running, skipping")
		return
	}
	defer s.cycle.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, pollHardTimeout)
	defer cancel()

	soft := time.AfterFunc(pollSoftTimeout, func() {
		s.logService.Warn(0, models.LogModuleMail, "slow_poll",
			"Inbox poll exceeded "+pollSoftTimeout.String(), nil)
	})
	defer soft.Stop()

	operation := func() error {
		_, err := s.replyService.PollReplies(runCtx)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 10 * time.Minute
	b.MaxElapsedTime = 0

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, pollMaxRetries), runCtx)); err != nil {
		s.logService.Error(0, models.LogModuleMail, "poll_inbox",
			"Inbox poll gave up after retries", map[string]interface{}{"error": err.Error()})
	}
}
