package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"mailbridge-backend/internal/mail/domain"
	"mailbridge-backend/internal/mail/repository"
	"mailbridge-backend/internal/mail/usecase"
)

// ResyncScheduler runs a periodic delta sync for every account that has
// completed its initial sync, as a fallback for missed webhook
// deliveries.
type ResyncScheduler struct {
	accountRepo repository.AccountRepository
	syncUsecase usecase.SyncUsecase
	interval    time.Duration
	stopChan    chan struct{}
}

// NewResyncScheduler creates a new scheduler.
func NewResyncScheduler(accountRepo repository.AccountRepository, syncUsecase usecase.SyncUsecase, interval time.Duration) *ResyncScheduler {
	return &ResyncScheduler{
		accountRepo: accountRepo,
		syncUsecase: syncUsecase,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the scheduler loop.
func (s *ResyncScheduler) Start() {
	log.Printf("[ResyncScheduler] Starting periodic resync (interval: %s)", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.resyncAll()
			case <-s.stopChan:
				log.Println("[ResyncScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *ResyncScheduler) Stop() {
	close(s.stopChan)
}

func (s *ResyncScheduler) resyncAll() {
	accounts, err := s.accountRepo.FindAll()
	if err != nil {
		log.Printf("[ResyncScheduler] Error listing accounts: %v", err)
		return
	}

	for _, account := range accounts {
		if account.NextDeltaToken == nil || *account.NextDeltaToken == "" {
			// Initial sync is caller-driven, never scheduled.
			continue
		}

		report, err := s.syncUsecase.RunDeltaSync(context.Background(), account.ID)
		if err != nil {
			if errors.Is(err, domain.ErrSyncInProgress) {
				continue
			}
			log.Printf("[ResyncScheduler] Resync failed for account %s: %v", account.ID, err)
			continue
		}

		if report.EmailsCreated > 0 {
			log.Printf("[ResyncScheduler] Account %s: %d new emails mirrored", account.ID, report.EmailsCreated)
		}
	}
}
