package engine

import (
	"path"
	"strings"
	"time"
)

// AdLevel is the targeting scope of a campaign.
type AdLevel string

const (
	LevelGlobal  AdLevel = "global"
	LevelCountry AdLevel = "country"
	LevelCity    AdLevel = "city"
)

// priority orders levels for delivery: global first, city last.
func (l AdLevel) priority() int {
	switch l {
	case LevelGlobal:
		return 1
	case LevelCountry:
		return 2
	case LevelCity:
		return 3
	}
	return 4
}

// Status is a campaign's lifecycle state. Transitions are owned by the
// backend; the engine only reads it.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusPendingReview Status = "pending_review"
	StatusActive        Status = "active"
	StatusPaused        Status = "paused"
	StatusCompleted     Status = "completed"
	StatusRejected      Status = "rejected"
)

// Campaign is an advertiser's creative plus targeting and schedule metadata.
type Campaign struct {
	ID              string
	Advertiser      string
	Headline        string
	Description     string
	CreativeURL     string
	VideoSeconds    float64 // declared creative duration, 0 if unknown
	CTAText         string
	CTAURL          string
	AdLevel         AdLevel
	TargetCountries []string
	TargetCities    []string
	Status          Status
	StartDate       time.Time  // zero means missing: never schedule-eligible
	EndDate         *time.Time // nil means open-ended
}

var videoExts = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
	".m4v":  true,
	".ogv":  true,
}

// IsVideo reports whether the creative URL points at a video file.
func (c Campaign) IsVideo() bool {
	u := c.CreativeURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return videoExts[strings.ToLower(path.Ext(u))]
}

// UnknownLocation is the fallback for viewers without a resolved location.
// It matches only global campaigns.
const UnknownLocation = "unknown"

// ViewerContext is the viewer's resolved location, derived once per
// session by an external geolocation step and passed in explicitly.
type ViewerContext struct {
	City    string
	Country string
}

// Normalized fills absent fields with UnknownLocation.
func (v ViewerContext) Normalized() ViewerContext {
	if strings.TrimSpace(v.City) == "" {
		v.City = UnknownLocation
	}
	if strings.TrimSpace(v.Country) == "" {
		v.Country = UnknownLocation
	}
	return v
}

// ImpressionEvent is a credited "was shown" event for one campaign during
// one rotation slot. At most one per slot.
type ImpressionEvent struct {
	CampaignID string
	OccurredAt time.Time
}

// ClickEvent is one user activation of a campaign's call-to-action.
type ClickEvent struct {
	CampaignID string
	OccurredAt time.Time
}

// EventSink receives controller output. Implementations must never block:
// recording is best-effort and rotation does not wait for it.
type EventSink interface {
	RecordImpression(ImpressionEvent)
	RecordClick(ClickEvent)
}
