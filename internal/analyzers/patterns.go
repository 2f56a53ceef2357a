package analyzers

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// patternTolerancePct is how close two swing prices must sit (as a
// fraction of price) to be treated as "the same level" by a pattern.
const patternTolerancePct = 0.004

// Patterns recognizes double-top/double-bottom and head-and-shoulders
// formations from the detected swing sequence. Each detection carries a
// price target projected from the pattern's own height.
func Patterns(candles []types.Candle) types.SubAnalysis {
	const kind = types.KindPatterns
	need := DefaultStructureLookback*2 + 5
	if len(candles) < need {
		return insufficient(kind, "not enough candles for pattern recognition")
	}

	points := swingPoints(candles, DefaultStructureLookback)
	var detected []types.DetectedPattern

	if p, ok := doubleTopOrBottom(points, true); ok {
		detected = append(detected, p)
	}
	if p, ok := doubleTopOrBottom(points, false); ok {
		detected = append(detected, p)
	}
	if p, ok := headAndShoulders(points); ok {
		detected = append(detected, p)
	}

	if len(detected) == 0 {
		return insufficient(kind, "no recognized pattern in the current swing sequence")
	}

	best := detected[0].Confidence
	for _, p := range detected[1:] {
		if p.Confidence > best {
			best = p.Confidence
		}
	}

	return types.SubAnalysis{
		Kind:       kind,
		Confidence: best,
		Patterns:   &types.Patterns{Detected: detected},
	}
}

func withinTolerance(a, b decimal.Decimal) bool {
	avg := a.Add(b).Div(decimal.NewFromInt(2)).Abs()
	if avg.IsZero() {
		return a.Equal(b)
	}
	return a.Sub(b).Abs().Div(avg).LessThanOrEqual(decimal.NewFromFloat(patternTolerancePct))
}

func doubleTopOrBottom(points []types.SwingPoint, top bool) (types.DetectedPattern, bool) {
	same := swingsOfType(points, top)
	if len(same) < 2 {
		return types.DetectedPattern{}, false
	}
	a, b := same[len(same)-2], same[len(same)-1]
	if !withinTolerance(a.Price, b.Price) {
		return types.DetectedPattern{}, false
	}

	opposite := swingsOfType(points, !top)
	var neckline decimal.Decimal
	for _, p := range opposite {
		if p.Index > a.Index && p.Index < b.Index {
			neckline = p.Price
		}
	}
	if neckline.IsZero() {
		return types.DetectedPattern{}, false
	}

	height := a.Price.Sub(neckline).Abs()
	var target decimal.Decimal
	name := "double_top"
	if top {
		target = neckline.Sub(height)
	} else {
		name = "double_bottom"
		target = neckline.Add(height)
	}

	return types.DetectedPattern{Name: name, Confidence: 0.7, Target: target}, true
}

func headAndShoulders(points []types.SwingPoint) (types.DetectedPattern, bool) {
	highs := swingsOfType(points, true)
	if len(highs) < 3 {
		return types.DetectedPattern{}, false
	}
	leftShoulder, head, rightShoulder := highs[len(highs)-3], highs[len(highs)-2], highs[len(highs)-1]
	if !head.Price.GreaterThan(leftShoulder.Price) || !head.Price.GreaterThan(rightShoulder.Price) {
		return types.DetectedPattern{}, false
	}
	if !withinTolerance(leftShoulder.Price, rightShoulder.Price) {
		return types.DetectedPattern{}, false
	}

	lows := swingsOfType(points, false)
	var necklineLeft, necklineRight decimal.Decimal
	for _, l := range lows {
		if l.Index > leftShoulder.Index && l.Index < head.Index {
			necklineLeft = l.Price
		}
		if l.Index > head.Index && l.Index < rightShoulder.Index {
			necklineRight = l.Price
		}
	}
	if necklineLeft.IsZero() || necklineRight.IsZero() {
		return types.DetectedPattern{}, false
	}

	neckline := necklineLeft.Add(necklineRight).Div(decimal.NewFromInt(2))
	height := head.Price.Sub(neckline)
	target := neckline.Sub(height)

	return types.DetectedPattern{Name: "head_and_shoulders", Confidence: 0.75, Target: target}, true
}
