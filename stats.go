package anychain

import "fmt"

// Stats accumulates objective results over many
// minibatches.
type Stats struct {
	NumMinibatches int
	NumFallbacks   int

	TotalWeight   float64
	TotalObjf     float64
	TotalL2Term   float64
	TotalXentObjf float64
}

// Add accumulates a result.
func (s *Stats) Add(r *Result) {
	s.NumMinibatches++
	if r.Fallback {
		s.NumFallbacks++
	}
	s.TotalWeight += r.Weight
	s.TotalObjf += r.Objf
	s.TotalL2Term += r.L2Term
	s.TotalXentObjf += r.XentObjf
}

// ObjfPerFrame returns the average objective per unit of
// frame weight, or 0 if nothing has been accumulated.
func (s *Stats) ObjfPerFrame() float64 {
	return s.perFrame(s.TotalObjf)
}

// L2PerFrame is like ObjfPerFrame for the L2 term.
func (s *Stats) L2PerFrame() float64 {
	return s.perFrame(s.TotalL2Term)
}

// XentPerFrame is like ObjfPerFrame for the
// cross-entropy objective.
func (s *Stats) XentPerFrame() float64 {
	return s.perFrame(s.TotalXentObjf)
}

// OK returns false if no frames were accumulated.
func (s *Stats) OK() bool {
	return s.TotalWeight > 0
}

// String summarizes the statistics.
func (s *Stats) String() string {
	objf, l2 := s.ObjfPerFrame(), s.L2PerFrame()
	return fmt.Sprintf("overall objective is %f + %f = %f over %f frames "+
		"(%d minibatches, %d fallbacks)", objf, l2, objf+l2, s.TotalWeight,
		s.NumMinibatches, s.NumFallbacks)
}

func (s *Stats) perFrame(total float64) float64 {
	if s.TotalWeight == 0 {
		return 0
	}
	return total / s.TotalWeight
}
