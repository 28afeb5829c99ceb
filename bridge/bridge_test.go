package bridge

import (
	"testing"
	"time"
)

func TestGetUnavailableBeforeFirstUpdate(t *testing.T) {
	s := &Service{staleAfter: DefaultStaleAfter}
	ctl := s.Get()
	if ctl.Available {
		t.Fatal("control should be unavailable before any update arrives")
	}
}

func TestGetReflectsLatestUpdate(t *testing.T) {
	s := &Service{staleAfter: time.Hour}
	s.lastTsetC = 42.5
	s.lastCHOn = true
	s.lastUpdated = time.Now()
	ctl := s.Get()
	if !ctl.Available || ctl.TsetC != 42.5 || !ctl.CHOn {
		t.Fatalf("Get = %+v, want available demand", ctl)
	}
}

func TestGetGoesStale(t *testing.T) {
	s := &Service{staleAfter: time.Millisecond}
	s.lastUpdated = time.Now().Add(-time.Second)
	if s.Get().Available {
		t.Fatal("control should be marked unavailable once past staleAfter")
	}
}
