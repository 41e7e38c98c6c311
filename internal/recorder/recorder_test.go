package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ad-delivery-engine/internal/engine"
)

type fakeStore struct {
	mu          sync.Mutex
	impressions []Impression
	clicks      []Click
	err         error
}

func (s *fakeStore) InsertImpression(_ context.Context, imp Impression) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.impressions = append(s.impressions, imp)
	return nil
}

func (s *fakeStore) InsertClick(_ context.Context, clk Click) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.clicks = append(s.clicks, clk)
	return nil
}

func TestRecorder_ImpressionEnrichment(t *testing.T) {
	store := &fakeStore{}
	rec := New(store, 16, 768)

	rec.RecordImpression(
		engine.ImpressionEvent{CampaignID: "c1", OccurredAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)},
		engine.ViewerContext{City: "Monterrey", Country: "MX"},
		500,
	)
	rec.Shutdown()

	require.Len(t, store.impressions, 1)
	imp := store.impressions[0]
	assert.NotEmpty(t, imp.EventID)
	assert.Equal(t, "c1", imp.CampaignID)
	assert.Equal(t, "MX", imp.Country)
	assert.Equal(t, "Monterrey", imp.City)
	assert.Equal(t, DeviceMobile, imp.Device)
}

func TestRecorder_DeviceClassification(t *testing.T) {
	tests := []struct {
		name  string
		width int
		want  string
	}{
		{"narrow viewport", 400, DeviceMobile},
		{"breakpoint boundary", 768, DeviceDesktop},
		{"wide viewport", 1920, DeviceDesktop},
		{"unreported width", 0, DeviceDesktop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			rec := New(store, 16, 768)
			rec.RecordImpression(engine.ImpressionEvent{CampaignID: "c"}, engine.ViewerContext{}, tt.width)
			rec.Shutdown()

			require.Len(t, store.impressions, 1)
			assert.Equal(t, tt.want, store.impressions[0].Device)
		})
	}
}

func TestRecorder_UnknownLocationFallback(t *testing.T) {
	store := &fakeStore{}
	rec := New(store, 16, 768)

	rec.RecordImpression(engine.ImpressionEvent{CampaignID: "c1"}, engine.ViewerContext{}, 1024)
	rec.Shutdown()

	require.Len(t, store.impressions, 1)
	assert.Equal(t, engine.UnknownLocation, store.impressions[0].Country)
	assert.Equal(t, engine.UnknownLocation, store.impressions[0].City)
}

func TestRecorder_StoreFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{err: errors.New("ledger unavailable")}
	rec := New(store, 16, 768)

	// Must not panic or surface the error; the event is simply lost.
	rec.RecordImpression(engine.ImpressionEvent{CampaignID: "c1"}, engine.ViewerContext{}, 500)
	rec.RecordClick(engine.ClickEvent{CampaignID: "c1"})
	rec.Shutdown()

	assert.Empty(t, store.impressions)
	assert.Empty(t, store.clicks)
}

func TestRecorder_MissingCampaignIDIgnored(t *testing.T) {
	store := &fakeStore{}
	rec := New(store, 16, 768)

	rec.RecordImpression(engine.ImpressionEvent{}, engine.ViewerContext{}, 500)
	rec.RecordClick(engine.ClickEvent{})
	rec.Shutdown()

	assert.Empty(t, store.impressions)
	assert.Empty(t, store.clicks)
}

func TestRecorder_ShutdownDrainsQueue(t *testing.T) {
	store := &fakeStore{}
	rec := New(store, 64, 768)

	for i := 0; i < 20; i++ {
		rec.RecordClick(engine.ClickEvent{CampaignID: "c1"})
	}
	rec.Shutdown()

	assert.Len(t, store.clicks, 20)
}

func TestRecorder_RecordAfterShutdownIsSafe(t *testing.T) {
	store := &fakeStore{}
	rec := New(store, 16, 768)
	rec.Shutdown()

	assert.NotPanics(t, func() {
		rec.RecordClick(engine.ClickEvent{CampaignID: "c1"})
	})
}

func TestRecorder_SessionSink(t *testing.T) {
	store := &fakeStore{}
	rec := New(store, 16, 768)

	sink := rec.SessionSink(engine.ViewerContext{City: "Tijuana", Country: "MX"}, 360)
	sink.RecordImpression(engine.ImpressionEvent{CampaignID: "c1"})
	sink.RecordClick(engine.ClickEvent{CampaignID: "c1"})
	rec.Shutdown()

	require.Len(t, store.impressions, 1)
	assert.Equal(t, "Tijuana", store.impressions[0].City)
	assert.Equal(t, DeviceMobile, store.impressions[0].Device)
	assert.Len(t, store.clicks, 1)
}
