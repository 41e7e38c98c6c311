package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func videoCampaign(id string) Campaign {
	c := activeCampaign(id, LevelGlobal)
	c.CreativeURL = "https://cdn.example.com/" + id + ".mp4"
	return c
}

func newDisplaying(t *testing.T, list ...Campaign) *Rotation {
	t.Helper()
	r := NewRotation(DefaultParams())
	r.Apply(ListChanged{Campaigns: list})
	return r
}

func TestRotation_InitialState(t *testing.T) {
	r := NewRotation(DefaultParams())
	assert.True(t, r.Idle())

	fx := r.Apply(ListChanged{Campaigns: []Campaign{activeCampaign("a", LevelGlobal)}})
	assert.Empty(t, fx) // not visible yet, nothing to arm
	assert.False(t, r.Idle())
	assert.Equal(t, 0, r.Index())
}

func TestRotation_Wraparound(t *testing.T) {
	r := newDisplaying(t,
		activeCampaign("a", LevelGlobal),
		activeCampaign("b", LevelGlobal),
		activeCampaign("c", LevelGlobal),
	)

	for i, want := range []int{1, 2, 0} {
		r.Apply(Tick{})
		assert.Equal(t, want, r.Index(), "after tick %d", i+1)
	}
}

func TestRotation_SingleCampaignNeverRotates(t *testing.T) {
	r := newDisplaying(t, activeCampaign("only", LevelGlobal))

	r.Apply(Tick{})
	assert.Equal(t, 0, r.Index())

	r.Apply(VideoTimeUpdated{Seconds: 10})
	fx := r.Apply(UserSkip{})
	assert.Empty(t, fx)
	assert.Equal(t, 0, r.Index())
}

func TestRotation_SkipGating(t *testing.T) {
	r := newDisplaying(t, videoCampaign("v"), activeCampaign("b", LevelGlobal))

	r.Apply(VideoTimeUpdated{Seconds: 6})
	assert.False(t, r.CanSkip())
	assert.Equal(t, 6.0, r.VideoElapsed())

	// Skip before the gate unlocks leaves the state unchanged.
	fx := r.Apply(UserSkip{})
	assert.Empty(t, fx)
	assert.Equal(t, 0, r.Index())

	r.Apply(VideoTimeUpdated{Seconds: 7})
	assert.True(t, r.CanSkip())

	r.Apply(UserSkip{})
	assert.Equal(t, 1, r.Index())
	assert.False(t, r.CanSkip(), "skip gate resets per slot")
	assert.Zero(t, r.VideoElapsed())
}

func TestRotation_SkipNeverUnlocksForImages(t *testing.T) {
	r := newDisplaying(t, activeCampaign("img", LevelGlobal), activeCampaign("b", LevelGlobal))

	r.Apply(VideoTimeUpdated{Seconds: 30})
	assert.False(t, r.CanSkip())
}

func TestRotation_ImpressionArming(t *testing.T) {
	r := newDisplaying(t, activeCampaign("a", LevelGlobal), activeCampaign("b", LevelGlobal))

	fx := r.Apply(VisibilityChanged{Visible: true})
	require.Equal(t, []Effect{StartArmTimer{}}, fx)

	fx = r.Apply(ArmTimerFired{})
	require.Len(t, fx, 1)
	imp, ok := fx[0].(EmitImpression)
	require.True(t, ok)
	assert.Equal(t, "a", imp.Campaign.ID)
}

func TestRotation_ImpressionDedupe(t *testing.T) {
	r := newDisplaying(t, activeCampaign("a", LevelGlobal), activeCampaign("b", LevelGlobal))

	// Visibility flickers before the arming window elapses: no impression.
	fx := r.Apply(VisibilityChanged{Visible: true})
	require.Equal(t, []Effect{StartArmTimer{}}, fx)
	fx = r.Apply(VisibilityChanged{Visible: false})
	require.Equal(t, []Effect{CancelArmTimer{}}, fx)
	fx = r.Apply(ArmTimerFired{}) // stale fire after cancel
	assert.Empty(t, fx)

	// Sustained visibility: exactly one impression.
	r.Apply(VisibilityChanged{Visible: true})
	fx = r.Apply(ArmTimerFired{})
	require.Len(t, fx, 1)

	// A second sustained-visibility period on the same slot credits nothing.
	r.Apply(VisibilityChanged{Visible: false})
	fx = r.Apply(VisibilityChanged{Visible: true})
	assert.Empty(t, fx, "already credited for this slot")
	fx = r.Apply(ArmTimerFired{})
	assert.Empty(t, fx)
}

func TestRotation_RotateReArmsWhileVisible(t *testing.T) {
	r := newDisplaying(t, activeCampaign("a", LevelGlobal), activeCampaign("b", LevelGlobal))

	r.Apply(VisibilityChanged{Visible: true})
	r.Apply(ArmTimerFired{}) // credit slot a

	fx := r.Apply(Tick{})
	assert.Equal(t, []Effect{StartArmTimer{}}, fx, "new slot starts its own arming window")

	fx = r.Apply(ArmTimerFired{})
	require.Len(t, fx, 1)
	imp := fx[0].(EmitImpression)
	assert.Equal(t, "b", imp.Campaign.ID)
}

func TestRotation_RotateCancelsPendingArm(t *testing.T) {
	r := newDisplaying(t, activeCampaign("a", LevelGlobal), activeCampaign("b", LevelGlobal))

	r.Apply(VisibilityChanged{Visible: true})
	fx := r.Apply(Tick{})
	assert.Equal(t, []Effect{CancelArmTimer{}, StartArmTimer{}}, fx)
}

func TestRotation_Activate(t *testing.T) {
	withCTA := activeCampaign("a", LevelGlobal)
	withCTA.CTAURL = "https://advertiser.example.com"

	anon := activeCampaign("", LevelGlobal)
	anon.CTAURL = "https://advertiser.example.com"

	noCTA := activeCampaign("c", LevelGlobal)

	tests := []struct {
		name      string
		campaign  Campaign
		wantClick bool
		wantNav   bool
	}{
		{"click and navigate", withCTA, true, true},
		{"missing id still navigates", anon, false, true},
		{"no destination does nothing", noCTA, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newDisplaying(t, tt.campaign)
			fx := r.Apply(UserActivate{})

			var clicks, navs int
			for _, f := range fx {
				switch f.(type) {
				case EmitClick:
					clicks++
				case Navigate:
					navs++
				}
			}
			assert.Equal(t, tt.wantClick, clicks == 1)
			assert.Equal(t, tt.wantNav, navs == 1)
		})
	}
}

func TestRotation_ListChange(t *testing.T) {
	a := activeCampaign("a", LevelGlobal)
	b := activeCampaign("b", LevelGlobal)
	c := activeCampaign("c", LevelGlobal)

	r := newDisplaying(t, a, b)
	r.Apply(Tick{})
	assert.Equal(t, 1, r.Index())

	// Same content: refresh is a no-op, slot is kept.
	fx := r.Apply(ListChanged{Campaigns: []Campaign{a, b}})
	assert.Empty(t, fx)
	assert.Equal(t, 1, r.Index())

	// Same ids but a swapped creative is still a content change.
	b2 := b
	b2.CreativeURL = "https://cdn.example.com/b-v2.mp4"
	r.Apply(ListChanged{Campaigns: []Campaign{a, b2}})
	assert.Equal(t, 0, r.Index())

	r.Apply(Tick{})
	assert.Equal(t, 1, r.Index())

	// Changed content: reset to the first slot with fresh sub-state.
	r.Apply(VideoTimeUpdated{Seconds: 9})
	r.Apply(ListChanged{Campaigns: []Campaign{a, b, c}})
	assert.Equal(t, 0, r.Index())
	assert.False(t, r.CanSkip())

	// Emptied list goes idle.
	r.Apply(ListChanged{Campaigns: nil})
	assert.True(t, r.Idle())
	_, ok := r.Current()
	assert.False(t, ok)
}

func TestRotation_EmptyListNeverArms(t *testing.T) {
	r := NewRotation(DefaultParams())
	fx := r.Apply(VisibilityChanged{Visible: true})
	assert.Empty(t, fx)
	fx = r.Apply(ArmTimerFired{})
	assert.Empty(t, fx)
}

func TestRotation_LoopCurrent(t *testing.T) {
	short := videoCampaign("short")
	short.VideoSeconds = 5
	long := videoCampaign("long")
	long.VideoSeconds = 12
	img := activeCampaign("img", LevelGlobal)

	tests := []struct {
		name string
		c    Campaign
		want bool
	}{
		{"short video loops", short, true},
		{"long video plays once", long, false},
		{"image never loops", img, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newDisplaying(t, tt.c)
			assert.Equal(t, tt.want, r.LoopCurrent())
		})
	}
}
