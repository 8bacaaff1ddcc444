package application

import (
	"context"
	"time"

	"fundsledger/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// maxPassesPerRun bounds how many full batches a single tick may drain
const maxPassesPerRun = 50

// PromoExpiryWorker periodically forfeits grants whose expiry has passed
type PromoExpiryWorker struct {
	expiry    interfaces.PromoExpiryService
	interval  time.Duration
	batchSize int
	clock     func() time.Time
}

// NewPromoExpiryWorker creates a new promo expiry worker
func NewPromoExpiryWorker(expiry interfaces.PromoExpiryService, interval time.Duration, batchSize int) *PromoExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &PromoExpiryWorker{
		expiry:    expiry,
		interval:  interval,
		batchSize: batchSize,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a pass immediately and then on every interval until ctx is done
// or the returned stop function is called.
func (w *PromoExpiryWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithFields(log.Fields{
			"interval":  w.interval,
			"batchSize": w.batchSize,
		}).Info("Promo expiry worker started")

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			if _, err := w.RunOnce(ctx); err != nil {
				log.Errorf("Error expiring promos: %v", err)
			}

			select {
			case <-ctx.Done():
				log.Info("Promo expiry worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Promo expiry worker shutting down (stop requested)...")
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// RunOnce expires everything due at the current time, one batch at a time,
// and returns how many grants were forfeited.
func (w *PromoExpiryWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.clock()
	total := 0

	for pass := 0; pass < maxPassesPerRun; pass++ {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		expired, err := w.expiry.ExpirePromos(ctx, now, w.batchSize)
		if err != nil {
			return total, err
		}
		total += expired

		// A short batch means nothing else was due
		if expired < w.batchSize {
			break
		}
	}

	if total > 0 {
		log.WithField("expired", total).Info("Promo expiry run finished")
	}
	return total, nil
}
