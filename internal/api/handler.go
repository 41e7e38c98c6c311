package api

import (
	"encoding/json"
	"net/http"
	"time"

	"ad-delivery-engine/internal/engine"
	"ad-delivery-engine/internal/recorder"
	"ad-delivery-engine/internal/storage"
)

type DeliveryHandler struct {
	Snap   *storage.Snapshot
	Rec    *recorder.Recorder
	Params engine.Params
	Now    func() time.Time
}

func NewDeliveryHandler(snap *storage.Snapshot, rec *recorder.Recorder, params engine.Params) *DeliveryHandler {
	return &DeliveryHandler{Snap: snap, Rec: rec, Params: params, Now: time.Now}
}

type adResponse struct {
	ID          string `json:"id"`
	Advertiser  string `json:"advertiser"`
	Headline    string `json:"headline"`
	Description string `json:"description,omitempty"`
	CreativeURL string `json:"creative_url"`
	IsVideo     bool   `json:"is_video"`
	CTAText     string `json:"cta_text,omitempty"`
	CTAURL      string `json:"cta_url,omitempty"`
	AdLevel     string `json:"ad_level"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ActiveAds returns campaigns deliverable to the viewer right now,
// ordered for rotation. An empty result is 204, never an error: ads are
// not critical to navigation.
func (h *DeliveryHandler) ActiveAds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	viewer := engine.ViewerContext{
		City:    q.Get("city"),
		Country: q.Get("country"),
	}

	matched := engine.Match(h.Snap.Campaigns(), h.Now(), viewer)
	if len(matched) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	out := make([]adResponse, 0, len(matched))
	for _, c := range matched {
		out = append(out, adResponse{
			ID:          c.ID,
			Advertiser:  c.Advertiser,
			Headline:    c.Headline,
			Description: c.Description,
			CreativeURL: c.CreativeURL,
			IsVideo:     c.IsVideo(),
			CTAText:     c.CTAText,
			CTAURL:      c.CTAURL,
			AdLevel:     string(c.AdLevel),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type paramsResponse struct {
	RotationMs         int64 `json:"rotation_ms"`
	SkipAfterSeconds   int64 `json:"skip_after_seconds"`
	MinVisibleMs       int64 `json:"min_visible_ms"`
	LoopUnderSeconds   int64 `json:"loop_under_seconds"`
	MaxCreativeSeconds int64 `json:"max_creative_seconds"`
}

// DeliveryParams exposes the rotation tuning so banner clients and the
// server agree on timing without hardcoding both sides.
func (h *DeliveryHandler) DeliveryParams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, paramsResponse{
		RotationMs:         h.Params.RotationInterval.Milliseconds(),
		SkipAfterSeconds:   int64(h.Params.SkipAfter.Seconds()),
		MinVisibleMs:       h.Params.MinVisibleTime.Milliseconds(),
		LoopUnderSeconds:   int64(h.Params.LoopUnder.Seconds()),
		MaxCreativeSeconds: int64(h.Params.MaxCreative.Seconds()),
	})
}

type impressionRequest struct {
	CampaignID    string `json:"campaign_id"`
	City          string `json:"city"`
	Country       string `json:"country"`
	ViewportWidth int    `json:"viewport_width"`
}

// Impression accepts one impression event. Always 202 once the payload
// parses; delivery to the ledger is best-effort downstream.
func (h *DeliveryHandler) Impression(w http.ResponseWriter, r *http.Request) {
	var req impressionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CampaignID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "campaign_id is required"})
		return
	}
	h.Rec.RecordImpression(
		engine.ImpressionEvent{CampaignID: req.CampaignID, OccurredAt: h.Now()},
		engine.ViewerContext{City: req.City, Country: req.Country},
		req.ViewportWidth,
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type clickRequest struct {
	CampaignID string `json:"campaign_id"`
}

// Click accepts one click event with the same contract as Impression.
func (h *DeliveryHandler) Click(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CampaignID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "campaign_id is required"})
		return
	}
	h.Rec.RecordClick(engine.ClickEvent{CampaignID: req.CampaignID, OccurredAt: h.Now()})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
