package cleanup

import (
	"log"
	"time"

	"fuelops-backend/internal/repository"
)

// CleanupService periodically purges terminal fuel requests past the
// retention window so the collection stays bounded.
type CleanupService struct {
	fuelRequestRepo *repository.FuelRequestRepository
	interval        time.Duration
	retention       time.Duration
	stopChan        chan bool
}

func NewCleanupService(fuelRequestRepo *repository.FuelRequestRepository, interval, retention time.Duration) *CleanupService {
	return &CleanupService{
		fuelRequestRepo: fuelRequestRepo,
		interval:        interval,
		retention:       retention,
		stopChan:        make(chan bool),
	}
}

// Start begins the cleanup service
func (s *CleanupService) Start() {
	log.Printf("Starting fuel request cleanup service (interval: %v, retention: %v)", s.interval, s.retention)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run cleanup immediately on start
	s.purgeOldRequests()

	for {
		select {
		case <-ticker.C:
			s.purgeOldRequests()
		case <-s.stopChan:
			log.Println("Stopping fuel request cleanup service")
			return
		}
	}
}

// Stop stops the cleanup service
func (s *CleanupService) Stop() {
	s.stopChan <- true
}

// purgeOldRequests removes terminal requests older than the retention window
func (s *CleanupService) purgeOldRequests() {
	cutoff := time.Now().Add(-s.retention)
	count, err := s.fuelRequestRepo.PurgeTerminalBefore(cutoff)
	if err != nil {
		log.Printf("Error purging old fuel requests: %v", err)
		return
	}

	if count > 0 {
		log.Printf("Purged %d fuel requests older than %v", count, s.retention)
	}
}
