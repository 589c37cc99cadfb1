package order

import (
	"context"
	"errors"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
)

const (
	publishPeer         = "outbox"
	publishTimeout      = 300 * time.Millisecond
	compensationTimeout = 5 * time.Second
	releaseAttempts     = 3
	releaseBackoff      = 50 * time.Millisecond

	reasonProductMissing = "product_missing"
	reasonCancelRelease  = "cancel_release_failed"
)

// eventPublisher publishes best effort and records the external call.
type eventPublisher struct {
	publisher    domoutbox.Publisher
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func newEventPublisher(p domoutbox.Publisher, metrics observability.Metrics) eventPublisher {
	if p == nil {
		p = domoutbox.NopPublisher()
	}
	return eventPublisher{
		publisher:    p,
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

func (p eventPublisher) publish(ctx context.Context, e domoutbox.Event) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := p.publisher.Publish(pubCtx, e)
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}

	p.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	p.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
	)
	return err
}

// compensator moves stock after the request's main write has been decided:
// undoing a reservation whose order was never stored, or returning the stock of
// a committed cancellation. It runs detached from the request context.
type compensator struct {
	ledger  StockLedger
	counter observability.Counter // stock_compensations_total{reason,outcome}
}

func (c compensator) release(ctx context.Context, log observability.Logger, reason string, reqs []product.StockRequest) error {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := c.ledger.Release(relCtx, reqs)
	c.record(log, reason, "release", err)
	return err
}

// releaseCancelled returns the stock of an order whose cancellation is already
// committed. Lines for products that left the catalog are skipped; other failures
// are retried with backoff. It reports whether any stock went back.
func (c compensator) releaseCancelled(ctx context.Context, log observability.Logger, reqs []product.StockRequest) bool {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	pending := reqs
	var err error
	for attempt := 0; attempt < releaseAttempts; {
		err = c.ledger.Release(relCtx, pending)
		if err == nil {
			return true
		}

		var missing *product.NotFoundError
		if errors.As(err, &missing) {
			if rest := withoutProducts(pending, missing.ProductIDs); len(rest) < len(pending) {
				log.Warn("stock_release_skipped",
					observability.F("reason", reasonProductMissing),
					observability.F("product_ids", missing.ProductIDs),
				)
				c.counter.Add(1, observability.L("reason", reasonProductMissing), observability.L("outcome", "skipped"))
				if pending = rest; len(pending) == 0 {
					return false
				}
				continue
			}
		}

		attempt++
		if attempt == releaseAttempts {
			break
		}
		select {
		case <-relCtx.Done():
			err = errors.Join(err, relCtx.Err())
			attempt = releaseAttempts
		case <-time.After(releaseBackoff << (attempt - 1)):
		}
	}
	c.record(log, reasonCancelRelease, "release", err)
	return false
}

func withoutProducts(reqs []product.StockRequest, ids []string) []product.StockRequest {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := make([]product.StockRequest, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := drop[r.ProductID]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func (c compensator) record(log observability.Logger, reason, action string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		log.Error("stock_compensation_failed",
			observability.F("reason", reason),
			observability.F("action", action),
			observability.F("error", err),
		)
	} else {
		log.Warn("stock_compensated",
			observability.F("reason", reason),
			observability.F("action", action),
		)
	}
	c.counter.Add(1, observability.L("reason", reason), observability.L("outcome", outcome))
}
