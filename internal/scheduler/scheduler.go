package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the daily analytics digest.
type Scheduler struct {
	cron       *cron.Cron
	ctx        context.Context
	cancel     context.CancelFunc
	digestFunc func(ctx context.Context) error
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetDigestFunction sets the function that builds and delivers the digest.
func (s *Scheduler) SetDigestFunction(f func(ctx context.Context) error) {
	s.digestFunc = f
}

func (s *Scheduler) Start() error {
	if s.digestFunc == nil {
		log.Println("⚠️ Digest function not set, scheduler will not generate digests")
		return nil
	}

	// Daily at 21:00 UTC
	_, err := s.cron.AddFunc("0 21 * * *", func() {
		log.Println("🕘 Triggered daily analytics digest at 21:00 UTC")
		if err := s.digestFunc(s.ctx); err != nil {
			log.Printf("❌ Daily digest generation failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	log.Println("📅 Scheduler started - daily analytics digest at 21:00 UTC")
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
