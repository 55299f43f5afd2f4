package common

import "testing"

func TestMemPauseViewPauseResume(t *testing.T) {
	v := NewMemPauseView()
	if v.IsPaused("pool") {
		t.Fatalf("expected pool not paused initially")
	}
	v.Pause("pool")
	if !v.IsPaused("pool") {
		t.Fatalf("expected pool paused")
	}
	if err := Guard(v, "pool"); err != ErrModulePaused {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	v.Resume("pool")
	if v.IsPaused("pool") {
		t.Fatalf("expected pool resumed")
	}
	if err := Guard(v, "pool"); err != nil {
		t.Fatalf("unexpected error after resume: %v", err)
	}
}
