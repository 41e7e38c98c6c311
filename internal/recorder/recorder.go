// Package recorder forwards impression and click events to the
// attribution ledger. Delivery is best-effort and at-most-once: a full
// queue or a failed write drops the event with a warning, and callers
// never observe an error.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ad-delivery-engine/internal/engine"
	"ad-delivery-engine/internal/observability"
)

const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
)

// Impression is an enriched, ledger-ready impression event.
type Impression struct {
	EventID    string
	CampaignID string
	Country    string
	City       string
	Device     string
	OccurredAt time.Time
}

// Click is a ledger-ready click event.
type Click struct {
	EventID    string
	CampaignID string
	OccurredAt time.Time
}

// Store is the write side of the attribution ledger.
type Store interface {
	InsertImpression(ctx context.Context, imp Impression) error
	InsertClick(ctx context.Context, clk Click) error
}

type envelope struct {
	imp *Impression
	clk *Click
}

// Recorder owns a buffered queue and one background worker draining it.
// Enqueueing never blocks; rotation must not wait on telemetry.
type Recorder struct {
	store     Store
	queue     chan envelope
	wg        sync.WaitGroup
	mobileMax int

	closeOnce sync.Once
}

func New(store Store, bufferSize, mobileMaxWidth int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if mobileMaxWidth <= 0 {
		mobileMaxWidth = 768
	}
	r := &Recorder{
		store:     store,
		queue:     make(chan envelope, bufferSize),
		mobileMax: mobileMaxWidth,
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// RecordImpression enriches the event with the viewer's location and
// device class and queues it for the ledger.
func (r *Recorder) RecordImpression(ev engine.ImpressionEvent, viewer engine.ViewerContext, viewportWidth int) {
	if ev.CampaignID == "" {
		return
	}
	viewer = viewer.Normalized()
	r.enqueue(envelope{imp: &Impression{
		EventID:    uuid.NewString(),
		CampaignID: ev.CampaignID,
		Country:    viewer.Country,
		City:       viewer.City,
		Device:     r.deviceClass(viewportWidth),
		OccurredAt: occurredAt(ev.OccurredAt),
	}})
}

// RecordClick queues one click event for the ledger.
func (r *Recorder) RecordClick(ev engine.ClickEvent) {
	if ev.CampaignID == "" {
		return
	}
	r.enqueue(envelope{clk: &Click{
		EventID:    uuid.NewString(),
		CampaignID: ev.CampaignID,
		OccurredAt: occurredAt(ev.OccurredAt),
	}})
}

// Shutdown stops accepting events and waits for the queue to drain.
func (r *Recorder) Shutdown() {
	r.closeOnce.Do(func() { close(r.queue) })
	r.wg.Wait()
}

func (r *Recorder) enqueue(env envelope) {
	defer func() {
		// Enqueue after Shutdown is a host wiring bug; swallow it rather
		// than crash, telemetry is never fatal.
		if recover() != nil {
			observability.EventsDropped.Inc()
		}
	}()
	select {
	case r.queue <- env:
	default:
		observability.EventsDropped.Inc()
		log.Warn().Msg("recorder queue full; dropping event")
	}
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for env := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		switch {
		case env.imp != nil:
			if err := r.store.InsertImpression(ctx, *env.imp); err != nil {
				observability.RecordFailures.WithLabelValues("impression").Inc()
				log.Warn().Err(err).Str("campaign", env.imp.CampaignID).Msg("record impression failed")
			} else {
				observability.ImpressionsRecorded.Inc()
			}
		case env.clk != nil:
			if err := r.store.InsertClick(ctx, *env.clk); err != nil {
				observability.RecordFailures.WithLabelValues("click").Inc()
				log.Warn().Err(err).Str("campaign", env.clk.CampaignID).Msg("record click failed")
			} else {
				observability.ClicksRecorded.Inc()
			}
		}
		cancel()
	}
}

func (r *Recorder) deviceClass(viewportWidth int) string {
	if viewportWidth > 0 && viewportWidth < r.mobileMax {
		return DeviceMobile
	}
	return DeviceDesktop
}

func occurredAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// sessionSink binds a recorder to one viewer session so a banner can emit
// events without carrying location or viewport state itself.
type sessionSink struct {
	rec           *Recorder
	viewer        engine.ViewerContext
	viewportWidth int
}

// SessionSink returns an engine.EventSink for one viewer session.
func (r *Recorder) SessionSink(viewer engine.ViewerContext, viewportWidth int) engine.EventSink {
	return &sessionSink{rec: r, viewer: viewer, viewportWidth: viewportWidth}
}

func (s *sessionSink) RecordImpression(ev engine.ImpressionEvent) {
	s.rec.RecordImpression(ev, s.viewer, s.viewportWidth)
}

func (s *sessionSink) RecordClick(ev engine.ClickEvent) {
	s.rec.RecordClick(ev)
}
