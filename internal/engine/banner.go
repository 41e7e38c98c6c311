package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Navigator opens a campaign destination for the viewer.
type Navigator func(url string)

// Banner drives one Rotation with real timers. All stimuli funnel through
// a single goroutine, so transitions are never processed concurrently.
// Effects fan out to the sink and navigator; neither is awaited.
type Banner struct {
	rot      *Rotation
	sink     EventSink
	navigate Navigator
	stimuli  chan Stimulus
	done     chan struct{}
}

// StartBanner runs a banner until ctx is cancelled. Cancellation tears
// down the rotation ticker and any in-flight arming timer so stale events
// cannot fire against a no-longer-current campaign.
func StartBanner(ctx context.Context, params Params, sink EventSink, navigate Navigator) *Banner {
	b := &Banner{
		rot:      NewRotation(params),
		sink:     sink,
		navigate: navigate,
		stimuli:  make(chan Stimulus, 16),
		done:     make(chan struct{}),
	}
	go b.loop(ctx, params)
	return b
}

// SetCampaigns replaces the eligible list, resetting to the first slot
// when the content differs.
func (b *Banner) SetCampaigns(list []Campaign) { b.send(ListChanged{Campaigns: list}) }

// SetVisible reports the display region crossing the visibility threshold.
func (b *Banner) SetVisible(visible bool) { b.send(VisibilityChanged{Visible: visible}) }

// VideoTime reports playback progress of the current video creative.
func (b *Banner) VideoTime(seconds float64) { b.send(VideoTimeUpdated{Seconds: seconds}) }

// Skip requests the next campaign; ignored until the skip gate unlocks.
func (b *Banner) Skip() { b.send(UserSkip{}) }

// Activate is a click on the creative or its call-to-action.
func (b *Banner) Activate() { b.send(UserActivate{}) }

// Done is closed once the banner loop has fully stopped.
func (b *Banner) Done() <-chan struct{} { return b.done }

func (b *Banner) send(s Stimulus) {
	select {
	case b.stimuli <- s:
	case <-b.done:
	}
}

func (b *Banner) loop(ctx context.Context, params Params) {
	defer close(b.done)

	ticker := time.NewTicker(params.RotationInterval)
	defer ticker.Stop()

	arm := time.NewTimer(params.MinVisibleTime)
	if !arm.Stop() {
		<-arm.C
	}
	defer arm.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("banner stopped")
			return
		case <-ticker.C:
			b.apply(Tick{}, arm, params)
		case <-arm.C:
			b.apply(ArmTimerFired{}, arm, params)
		case s := <-b.stimuli:
			b.apply(s, arm, params)
		}
	}
}

func (b *Banner) apply(s Stimulus, arm *time.Timer, params Params) {
	for _, fx := range b.rot.Apply(s) {
		switch fx := fx.(type) {
		case StartArmTimer:
			stopTimer(arm)
			arm.Reset(params.MinVisibleTime)
		case CancelArmTimer:
			stopTimer(arm)
		case EmitImpression:
			b.sink.RecordImpression(ImpressionEvent{
				CampaignID: fx.Campaign.ID,
				OccurredAt: time.Now(),
			})
		case EmitClick:
			b.sink.RecordClick(ClickEvent{
				CampaignID: fx.Campaign.ID,
				OccurredAt: time.Now(),
			})
		case Navigate:
			if b.navigate != nil {
				b.navigate(fx.URL)
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
