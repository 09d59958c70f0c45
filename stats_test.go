package anychain

import (
	"math"
	"strings"
	"testing"
)

func TestStats(t *testing.T) {
	var s Stats
	if s.OK() {
		t.Error("empty stats should not be OK")
	}
	s.Add(&Result{Objf: -4, L2Term: -1, Weight: 2, XentObjf: -6})
	s.Add(&Result{Objf: -60, Weight: 6, Fallback: true})
	if !s.OK() {
		t.Error("stats should be OK")
	}
	if s.NumMinibatches != 2 || s.NumFallbacks != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if math.Abs(s.ObjfPerFrame()+8) > 1e-12 {
		t.Errorf("expected objf -8 but got %f", s.ObjfPerFrame())
	}
	if math.Abs(s.L2PerFrame()+0.125) > 1e-12 {
		t.Errorf("expected L2 -0.125 but got %f", s.L2PerFrame())
	}
	if math.Abs(s.XentPerFrame()+0.75) > 1e-12 {
		t.Errorf("expected xent -0.75 but got %f", s.XentPerFrame())
	}
	if !strings.Contains(s.String(), "1 fallbacks") {
		t.Errorf("unexpected summary: %s", s.String())
	}
}
