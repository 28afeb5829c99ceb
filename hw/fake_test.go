package hw

import "testing"

func TestFakePinIRQFiresOnConfiguredEdge(t *testing.T) {
	p := &FakePin{}
	fired := 0
	if err := p.SetIRQ(EdgeBoth, func() { fired++ }); err != nil {
		t.Fatalf("SetIRQ: %v", err)
	}
	p.Set(true)
	p.Set(false)
	p.Set(false) // repeat level: no edge, no extra callback
	if fired != 2 {
		t.Fatalf("fired = %d, want 2", fired)
	}
}

func TestFakePinIRQRespectsEdgeFilter(t *testing.T) {
	p := &FakePin{}
	fired := 0
	_ = p.SetIRQ(EdgeRising, func() { fired++ })
	p.Set(true)
	p.Set(false)
	p.Set(true)
	if fired != 2 {
		t.Fatalf("fired = %d, want 2 (rising only)", fired)
	}
}

func TestHostPinFactoryStableInstances(t *testing.T) {
	f := NewHostPinFactory()
	a, _ := f.ByNumber(3)
	b, _ := f.ByNumber(3)
	if a != b {
		t.Fatal("ByNumber must return the same pin for the same number")
	}
	fp, ok := f.Get(3)
	if !ok || fp.Number() != 3 {
		t.Fatal("Get must expose the underlying FakePin")
	}
}
