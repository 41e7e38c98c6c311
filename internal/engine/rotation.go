package engine

import (
	"slices"
	"time"
)

// Params are the rotation tuning knobs. The video duration limits are
// conventions surfaced to hosts, not enforced here.
type Params struct {
	RotationInterval time.Duration // advance to the next campaign this often
	SkipAfter        time.Duration // video skip unlocks at this playback time
	MinVisibleTime   time.Duration // sustained visibility required to credit an impression
	LoopUnder        time.Duration // videos at or under this declared length loop
	MaxCreative      time.Duration // content-policy ceiling for creatives
}

func DefaultParams() Params {
	return Params{
		RotationInterval: 8 * time.Second,
		SkipAfter:        7 * time.Second,
		MinVisibleTime:   time.Second,
		LoopUnder:        6 * time.Second,
		MaxCreative:      15 * time.Second,
	}
}

// Stimulus is an external input to the rotation state machine. The host
// adapter owns the real timers and observers and translates them into
// stimuli; the machine itself never touches the clock.
type Stimulus interface{ stimulus() }

// Tick is the rotation timer firing.
type Tick struct{}

// VisibilityChanged reports the display region crossing the visibility
// threshold in either direction.
type VisibilityChanged struct{ Visible bool }

// VideoTimeUpdated reports video playback progress for the current slot.
type VideoTimeUpdated struct{ Seconds float64 }

// ArmTimerFired reports the impression-arming timer elapsing.
type ArmTimerFired struct{}

// UserSkip is the viewer requesting the next campaign.
type UserSkip struct{}

// UserActivate is the viewer clicking the creative or its call-to-action.
type UserActivate struct{}

// ListChanged replaces the eligible campaign list.
type ListChanged struct{ Campaigns []Campaign }

func (Tick) stimulus()              {}
func (VisibilityChanged) stimulus() {}
func (VideoTimeUpdated) stimulus()  {}
func (ArmTimerFired) stimulus()     {}
func (UserSkip) stimulus()          {}
func (UserActivate) stimulus()      {}
func (ListChanged) stimulus()       {}

// Effect is an output the host must act on. The machine emits effects
// instead of performing side effects so transitions stay testable.
type Effect interface{ effect() }

// EmitImpression credits one impression for the campaign.
type EmitImpression struct{ Campaign Campaign }

// EmitClick records one click for the campaign.
type EmitClick struct{ Campaign Campaign }

// Navigate opens the campaign's destination URL in a fresh context.
type Navigate struct{ URL string }

// StartArmTimer asks the host to fire ArmTimerFired after MinVisibleTime.
type StartArmTimer struct{}

// CancelArmTimer voids any pending arming timer.
type CancelArmTimer struct{}

func (EmitImpression) effect() {}
func (EmitClick) effect()      {}
func (Navigate) effect()       {}
func (StartArmTimer) effect()  {}
func (CancelArmTimer) effect() {}

// Rotation cycles one banner instance through an eligible campaign list.
// Idle while the list is empty, otherwise displaying exactly one slot.
// Not safe for concurrent use; the host serializes stimuli.
type Rotation struct {
	params Params

	list  []Campaign
	index int

	elapsedVideo float64
	canSkip      bool
	impressed    bool // impression already credited for this slot
	visible      bool
	armPending   bool
}

func NewRotation(params Params) *Rotation {
	return &Rotation{params: params}
}

// Current returns the displayed campaign, if any.
func (r *Rotation) Current() (Campaign, bool) {
	if len(r.list) == 0 {
		return Campaign{}, false
	}
	return r.list[r.index], true
}

// Idle reports whether there is nothing to display.
func (r *Rotation) Idle() bool { return len(r.list) == 0 }

// Index returns the current slot index.
func (r *Rotation) Index() int { return r.index }

// CanSkip reports whether the skip control is unlocked for this slot.
func (r *Rotation) CanSkip() bool { return r.canSkip }

// VideoElapsed returns the playback seconds reported for the current slot.
func (r *Rotation) VideoElapsed() float64 { return r.elapsedVideo }

// LoopCurrent reports whether the current video creative should auto-loop
// (declared duration at or under LoopUnder). Advisory for the host player.
func (r *Rotation) LoopCurrent() bool {
	c, ok := r.Current()
	if !ok || !c.IsVideo() {
		return false
	}
	return c.VideoSeconds > 0 && c.VideoSeconds <= r.params.LoopUnder.Seconds()
}

// Apply feeds one stimulus through the machine and returns the effects the
// host must perform, in order.
func (r *Rotation) Apply(s Stimulus) []Effect {
	switch s := s.(type) {
	case Tick:
		return r.advance()

	case UserSkip:
		if !r.canSkip || len(r.list) <= 1 {
			return nil
		}
		return r.advance()

	case VideoTimeUpdated:
		c, ok := r.Current()
		if !ok || !c.IsVideo() {
			return nil
		}
		r.elapsedVideo = s.Seconds
		if s.Seconds >= r.params.SkipAfter.Seconds() {
			r.canSkip = true
		}
		return nil

	case VisibilityChanged:
		return r.setVisible(s.Visible)

	case ArmTimerFired:
		if !r.armPending || !r.visible || r.impressed {
			return nil
		}
		r.armPending = false
		c, ok := r.Current()
		if !ok {
			return nil
		}
		r.impressed = true
		return []Effect{EmitImpression{Campaign: c}}

	case UserActivate:
		return r.activate()

	case ListChanged:
		if sameCampaigns(r.list, s.Campaigns) {
			return nil
		}
		r.list = s.Campaigns
		r.index = 0
		return r.resetSlot()
	}
	return nil
}

// advance moves to the next slot, wrapping around. A single-campaign list
// never rotates.
func (r *Rotation) advance() []Effect {
	if len(r.list) <= 1 {
		return nil
	}
	r.index = (r.index + 1) % len(r.list)
	return r.resetSlot()
}

// resetSlot clears per-slot sub-state. A pending arming timer belongs to
// the previous slot and must be cancelled; if the region is still visible
// the new slot starts its own arming window from scratch.
func (r *Rotation) resetSlot() []Effect {
	r.elapsedVideo = 0
	r.canSkip = false
	r.impressed = false

	var fx []Effect
	if r.armPending {
		r.armPending = false
		fx = append(fx, CancelArmTimer{})
	}
	if r.visible && len(r.list) > 0 {
		r.armPending = true
		fx = append(fx, StartArmTimer{})
	}
	return fx
}

func (r *Rotation) setVisible(visible bool) []Effect {
	if visible == r.visible {
		return nil
	}
	r.visible = visible
	if !visible {
		if r.armPending {
			r.armPending = false
			return []Effect{CancelArmTimer{}}
		}
		return nil
	}
	if r.impressed || r.armPending || len(r.list) == 0 {
		return nil
	}
	r.armPending = true
	return []Effect{StartArmTimer{}}
}

// activate handles a click on the creative or its call-to-action. Tracking
// never blocks navigation: a campaign without an id still navigates, a
// campaign without a destination does nothing.
func (r *Rotation) activate() []Effect {
	c, ok := r.Current()
	if !ok || c.CTAURL == "" {
		return nil
	}
	var fx []Effect
	if c.ID != "" {
		fx = append(fx, EmitClick{Campaign: c})
	}
	return append(fx, Navigate{URL: c.CTAURL})
}

// sameCampaigns compares full content, not just ids: a refresh that swaps
// a campaign's creative or targeting under the same id still resets the
// rotation.
func sameCampaigns(a, b []Campaign) bool {
	return slices.EqualFunc(a, b, campaignEqual)
}

func campaignEqual(a, b Campaign) bool {
	if a.ID != b.ID ||
		a.Advertiser != b.Advertiser ||
		a.Headline != b.Headline ||
		a.Description != b.Description ||
		a.CreativeURL != b.CreativeURL ||
		a.VideoSeconds != b.VideoSeconds ||
		a.CTAText != b.CTAText ||
		a.CTAURL != b.CTAURL ||
		a.AdLevel != b.AdLevel ||
		a.Status != b.Status ||
		!a.StartDate.Equal(b.StartDate) {
		return false
	}
	if !slices.Equal(a.TargetCountries, b.TargetCountries) ||
		!slices.Equal(a.TargetCities, b.TargetCities) {
		return false
	}
	if (a.EndDate == nil) != (b.EndDate == nil) {
		return false
	}
	return a.EndDate == nil || a.EndDate.Equal(*b.EndDate)
}
