package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
)

const (
	syncSoftTimeout = 2 * time.Minute
	syncHardTimeout = 3 * time.Minute
	syncMaxRetries  = 3
)

// SyncScheduler runs the submission sync for every active site on a
// fixed cadence. Each site syncs on its own goroutine behind a per-site
// lock, so a slow site never blocks the others and no site ever runs
// twice concurrently.
type SyncScheduler struct {
	syncService *SyncService
	siteService *SiteService
	logService  *LogService
	interval    time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}

	// prevents overlapping full runs when a cycle outlasts the interval
	cycle sync.Mutex

	siteLocks sync.Map // site id -> *sync.Mutex
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(syncService *SyncService, siteService *SiteService, logService *LogService, interval time.Duration) *SyncScheduler {
	return &SyncScheduler{
		syncService: syncService,
		siteService: siteService,
		logService:  logService,
		interval:    interval,
	}
}

// Start launches the scheduler loop
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	go s.run()
	log.Printf("[SyncScheduler] Started with interval %s", s.interval)
}

// Stop signals the scheduler loop to exit
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopChan)
	log.Printf("[SyncScheduler] Stopped")
}

func (s *SyncScheduler) run() {
	// First cycle right away, then on the ticker
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

// RunCycle fans the sync out over all active sites and waits for them
func (s *SyncScheduler) RunCycle(ctx context.Context) {
	if !s.cycle.TryLock() {
		log.Printf("[SyncScheduler] Previous cycle still running, skipping")
		return
	}
	defer s.cycle.Unlock()

	sites, err := s.siteService.ListSites(false)
	if err != nil {
		s.logService.Error(0, models.LogModuleSync, "cycle", "Failed to list sites", map[string]interface{}{"error": err.Error()})
		return
	}
	if len(sites) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, site := range sites {
		wg.Add(1)
		go func(siteID uint, name string) {
			defer wg.Done()
			s.syncOneSite(ctx, siteID, name)
		}(site.ID, site.Name)
	}
	wg.Wait()
}

// syncOneSite runs one site's sync with retry on unexpected errors.
// Remote-side failures come back inside the result and are not retried;
// the next cycle will try again anyway.
func (s *SyncScheduler) syncOneSite(ctx context.Context, siteID uint, name string) {
	lockAny, _ := s.siteLocks.LoadOrStore(siteID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	if !lock.TryLock() {
		log.Printf("[SyncScheduler] Site %d (%s) already syncing, skipping", siteID, name)
		return
	}
	defer lock.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, syncHardTimeout)
	defer cancel()

	soft := time.AfterFunc(syncSoftTimeout, func() {
		s.logService.Warn(0, models.LogModuleSync, "slow_sync",
			fmt.Sprintf("Sync for site %s exceeded %s", name, syncSoftTimeout), map[string]interface{}{"site_id": siteID})
	})
	defer soft.Stop()

	operation := func() error {
		_, err := s.syncService.SyncSite(runCtx, siteID)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 10 * time.Minute
	b.MaxElapsedTime = 0

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, syncMaxRetries), runCtx)); err != nil {
		s.logService.Error(0, models.LogModuleSync, "sync_site",
			fmt.Sprintf("Sync for site %s gave up after retries", name),
			map[string]interface{}{"site_id": siteID, "error": err.Error()})
	}
}
