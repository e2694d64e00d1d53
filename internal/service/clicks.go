package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shortkit/shortkit/internal/models"
)

// clickWorker drains the click queue in batches. Each flush bumps the cache
// counter and the durable counter per code; the two writes are independent
// and unordered, and either may fail without retries. Readers reconcile with
// max(durable, cache). Events are also mirrored to the analytics queue when
// a publisher is configured.
func (s *Shortener) clickWorker(id int) {
	defer s.wg.Done()

	s.logger.Debug("Click worker started", zap.Int("workerID", id))

	batch := make([]models.ClickEvent, 0, s.batchSize)
	timer := time.NewTimer(s.batchTimeout)
	defer timer.Stop()

	for {
		timer.Reset(s.batchTimeout)

		select {
		case event, ok := <-s.clickEvents:
			if !ok {
				s.flushClicks(batch)
				s.logger.Debug("Click worker stopped", zap.Int("workerID", id))
				return
			}

			batch = append(batch, event)

			if len(batch) >= s.batchSize {
				s.flushClicks(batch)
				batch = batch[:0]
				if !timer.Stop() {
					<-timer.C
				}
			}

		case <-timer.C:
			if len(batch) > 0 {
				s.flushClicks(batch)
				batch = batch[:0]
			}

		case <-s.shutdown:
			for event := range s.clickEvents {
				batch = append(batch, event)
			}
			s.flushClicks(batch)
			s.logger.Debug("Click worker stopped by shutdown", zap.Int("workerID", id))
			return
		}
	}
}

func (s *Shortener) flushClicks(batch []models.ClickEvent) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	counts := make(map[string]int64)
	for _, event := range batch {
		counts[event.ShortCode]++
	}

	for code, n := range counts {
		if _, err := s.cache.AddClicks(ctx, code, n); err != nil {
			s.logger.Warn("Failed to increment cache clicks",
				zap.String("shortCode", code),
				zap.Error(err))
		}

		// Guest codes have no row; the update affects nothing and that is fine.
		if err := s.store.AddClicks(ctx, code, n); err != nil {
			s.logger.Warn("Failed to increment durable clicks",
				zap.String("shortCode", code),
				zap.Error(err))
		}
	}

	if s.publisher != nil {
		for _, event := range batch {
			if err := s.publisher.Publish(ctx, event); err != nil {
				s.logger.Warn("Failed to publish click event",
					zap.String("shortCode", event.ShortCode),
					zap.Error(err))
			}
		}
	}
}
