package service

import (
	"context"
	"log/slog"
	"time"
)

// sessionExpirer is the part of CredentialService the sweeper needs.
type sessionExpirer interface {
	ExpireSession(ctx context.Context) (bool, error)
}

// HousekeepingService periodically removes the current session once it is
// past its TTL, so a stale token is gone even if nobody asks for it.
type HousekeepingService struct {
	Sessions sessionExpirer
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults interval to one minute.
func NewHousekeepingService(sessions sessionExpirer, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HousekeepingService{
		Sessions: sessions,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweeper in the background until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress sweep has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Interval)
	defer cancel()

	expired, err := s.Sessions.ExpireSession(ctx)
	if err != nil {
		s.Logger.Error("session sweep failed", "error", err)
		return
	}
	if expired {
		s.Logger.Info("expired session removed")
	}
}
