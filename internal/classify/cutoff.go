package classify

import (
	"fmt"
	"math"

	"github.com/abhisek/taxassign/internal/hits"
)

// CutoffPolicy decides which hits are usable and which are far enough apart
// in significance to count as independent evidence. It is an immutable value;
// one policy is normally shared by every query of a run.
type CutoffPolicy struct {
	minIdentity    float64
	minCoverage    float64
	minEvalueRatio float64
}

// NewCutoffPolicy returns a policy with the given thresholds. Identity and
// coverage are percentages; ratio is the minimum worse/better e-value ratio.
func NewCutoffPolicy(minIdentity, minCoverage, minEvalueRatio float64) (CutoffPolicy, error) {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"min identity", minIdentity},
		{"min coverage", minCoverage},
		{"min e-value ratio", minEvalueRatio},
	} {
		if v.value < 0 || math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return CutoffPolicy{}, fmt.Errorf("%s must be a non-negative number, got %v", v.name, v.value)
		}
	}
	return CutoffPolicy{
		minIdentity:    minIdentity,
		minCoverage:    minCoverage,
		minEvalueRatio: minEvalueRatio,
	}, nil
}

func (p CutoffPolicy) MinIdentity() float64    { return p.minIdentity }
func (p CutoffPolicy) MinCoverage() float64    { return p.minCoverage }
func (p CutoffPolicy) MinEvalueRatio() float64 { return p.minEvalueRatio }

func (p CutoffPolicy) String() string {
	return fmt.Sprintf("identity>=%g coverage>=%g ratio>=%g", p.minIdentity, p.minCoverage, p.minEvalueRatio)
}

// PassesQualityCutoffs reports whether h meets both the identity and the
// coverage threshold. Equality passes; a nil hit fails.
func (p CutoffPolicy) PassesQualityCutoffs(h *hits.Hit) bool {
	if h == nil {
		return false
	}
	return h.Identity >= p.minIdentity && h.Coverage >= p.minCoverage
}

// IsSeparatedByEvalue reports whether worse.Evalue / better.Evalue reaches
// the ratio threshold. A nil hit fails.
//
// The arguments are not symmetric and their order is not checked: worse must
// be the hit with the larger e-value. Swapping them asks whether the better
// hit is separated from the worse one, which is almost never true.
func (p CutoffPolicy) IsSeparatedByEvalue(worse, better *hits.Hit) bool {
	if worse == nil || better == nil {
		return false
	}
	return worse.Evalue/better.Evalue >= p.minEvalueRatio
}
