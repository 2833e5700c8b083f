package domain

import "testing"

func TestJobStateTransitions(t *testing.T) {
	cases := []struct {
		from, to JobState
		want     bool
	}{
		{JobStateQueued, JobStateGenerating, true},
		{JobStateQueued, JobStateReady, false},
		{JobStateQueued, JobStateFailed, true},
		{JobStateGenerating, JobStateGenerating, true},
		{JobStateGenerating, JobStateReady, true},
		{JobStateGenerating, JobStateFailed, true},
		{JobStateReady, JobStateGenerating, false},
		{JobStateReady, JobStateFailed, false},
		{JobStateFailed, JobStateGenerating, false},
		{JobStateFailed, JobStateReady, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestJobStateTerminal(t *testing.T) {
	if JobStateQueued.Terminal() || JobStateGenerating.Terminal() {
		t.Fatal("queued/generating must not be terminal")
	}
	if !JobStateReady.Terminal() || !JobStateFailed.Terminal() {
		t.Fatal("ready/failed must be terminal")
	}
}
