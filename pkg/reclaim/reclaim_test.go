package reclaim

import "testing"

func TestAddThenHeartbeatEventuallyFinalizes(t *testing.T) {
	var finalized []int
	r := New(3, func(item int) {
		finalized = append(finalized, item)
	})

	r.Add(1)

	for i := 0; i < 2; i++ {
		r.Heartbeat()
		if len(finalized) != 0 {
			t.Fatalf("item finalized after %d heartbeats, want after 3", i+1)
		}
	}

	r.Heartbeat()
	if len(finalized) != 1 || finalized[0] != 1 {
		t.Fatalf("finalized = %v, want [1]", finalized)
	}
}

func TestPendingReflectsUnfinalizedItems(t *testing.T) {
	r := New(3, func(int) {})
	r.Add(1)
	r.Add(2)

	if n := r.Pending(); n != 2 {
		t.Fatalf("Pending() = %d, want 2", n)
	}

	r.Heartbeat()
	r.Heartbeat()
	r.Heartbeat()

	if n := r.Pending(); n != 0 {
		t.Fatalf("Pending() = %d after draining, want 0", n)
	}
}

func TestDelayClampedToOne(t *testing.T) {
	var finalized []string
	r := New(0, func(item string) {
		finalized = append(finalized, item)
	})

	r.Add("a")
	r.Heartbeat()

	if len(finalized) != 1 || finalized[0] != "a" {
		t.Fatalf("finalized = %v, want [a] after a single heartbeat with delay clamped to 1", finalized)
	}
}

func TestItemsAddedAfterAHeartbeatSurviveTheirOwnWindow(t *testing.T) {
	var finalized []int
	r := New(2, func(item int) {
		finalized = append(finalized, item)
	})

	r.Add(1)
	r.Heartbeat() // generation housing 1 ages once
	r.Add(2)      // lands in the fresh current generation

	r.Heartbeat() // 1's generation ages out
	if len(finalized) != 1 || finalized[0] != 1 {
		t.Fatalf("finalized = %v, want [1] after second heartbeat", finalized)
	}

	r.Heartbeat() // 2's generation ages out
	if len(finalized) != 2 || finalized[1] != 2 {
		t.Fatalf("finalized = %v, want [1 2] after third heartbeat", finalized)
	}
}
