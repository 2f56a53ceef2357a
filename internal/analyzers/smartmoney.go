package analyzers

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
	"github.com/sezginpak/gold-analyzer/pkg/utils"
)

// liquidityTouchTolerancePct groups swing levels within 0.1% of each
// other into the same liquidity pool.
const liquidityTouchTolerancePct = 0.001

// orderBlockMoveMultiple is how many times a consolidation range's own
// width the breakout move must travel to qualify as "strong".
const orderBlockMoveMultiple = 2.0

// SmartMoney detects liquidity pools (repeatedly touched swing levels),
// order blocks (tight consolidations preceding a strong directional
// move), fair value gaps (3-bar imbalances), and stop hunts (a wick
// that pierces a liquidity level and reverts within two bars), then
// derives candidate entry zones from the freshest unfilled structures.
func SmartMoney(candles []types.Candle) types.SubAnalysis {
	const kind = types.KindSmartMoney
	need := DefaultStructureLookback*2 + 5
	if len(candles) < need {
		return insufficient(kind, "not enough candles for smart-money structure detection")
	}

	points := swingPoints(candles, DefaultStructureLookback)
	pools := liquidityPools(points)
	blocks := orderBlocks(candles)
	fvgs := fairValueGaps(candles)
	hunt := stopHunt(candles, pools)

	entryZones := make([]decimal.Decimal, 0, len(blocks)+len(fvgs))
	for _, b := range blocks {
		entryZones = append(entryZones, b.Low.Add(b.High).Div(decimal.NewFromInt(2)))
	}
	for _, g := range fvgs {
		if !g.Filled {
			entryZones = append(entryZones, g.Top.Add(g.Bottom).Div(decimal.NewFromInt(2)))
		}
	}

	confidence := 0.5
	if len(pools) > 0 || len(blocks) > 0 || len(fvgs) > 0 {
		confidence = 0.65
	}
	if hunt != nil {
		confidence = 0.8
	}

	return types.SubAnalysis{
		Kind:       kind,
		Confidence: confidence,
		SmartMoney: &types.SmartMoney{
			LiquidityPools: pools,
			StopHunt:       hunt,
			OrderBlocks:    blocks,
			FVGs:           fvgs,
			EntryZones:     entryZones,
		},
	}
}

func liquidityPools(points []types.SwingPoint) []types.LiquidityPool {
	var pools []types.LiquidityPool
	used := make([]bool, len(points))

	for i, p := range points {
		if used[i] {
			continue
		}
		touches := 1
		used[i] = true
		tolerance := p.Price.Abs().Mul(decimal.NewFromFloat(liquidityTouchTolerancePct))
		for j := i + 1; j < len(points); j++ {
			if used[j] || points[j].IsHigh != p.IsHigh {
				continue
			}
			if points[j].Price.Sub(p.Price).Abs().LessThanOrEqual(tolerance) {
				touches++
				used[j] = true
			}
		}
		if touches >= 3 {
			pools = append(pools, types.LiquidityPool{Price: p.Price, Touches: touches, IsHigh: p.IsHigh})
		}
	}
	return pools
}

// orderBlocks scans for a tight 3-candle consolidation (range narrower
// than the preceding candle's range) immediately followed by a move
// that travels at least orderBlockMoveMultiple times the consolidation's
// own width.
func orderBlocks(candles []types.Candle) []types.OrderBlock {
	var blocks []types.OrderBlock
	for i := 1; i+4 < len(candles); i++ {
		consolidation := candles[i : i+3]
		lo, hi := consolidation[0].Low, consolidation[0].High
		for _, c := range consolidation {
			lo = utils.MinDecimal(lo, c.Low)
			hi = utils.MaxDecimal(hi, c.High)
		}
		width := hi.Sub(lo)
		if width.IsZero() {
			continue
		}
		prev := candles[i-1]
		if !width.LessThan(prev.High.Sub(prev.Low)) {
			continue
		}

		breakout := candles[i+3]
		move := breakout.Close.Sub(consolidation[2].Close)
		threshold := width.Mul(decimal.NewFromFloat(orderBlockMoveMultiple))
		if move.Abs().LessThan(threshold) {
			continue
		}

		blocks = append(blocks, types.OrderBlock{
			StartIndex: i, EndIndex: i + 2,
			Low: lo, High: hi, Bullish: move.IsPositive(),
		})
	}
	if len(blocks) > 5 {
		blocks = blocks[len(blocks)-5:]
	}
	return blocks
}

// fairValueGaps finds 3-bar imbalances where the first candle's high
// (low) never overlaps the third candle's low (high), per direction.
func fairValueGaps(candles []types.Candle) []types.FVG {
	var gaps []types.FVG
	for i := 0; i+2 < len(candles); i++ {
		a, _, c := candles[i], candles[i+1], candles[i+2]
		if c.Low.GreaterThan(a.High) {
			gaps = append(gaps, types.FVG{Index: i + 1, Top: c.Low, Bottom: a.High, Bullish: true, Filled: gapFilled(candles[i+3:], a.High, c.Low)})
		} else if a.Low.GreaterThan(c.High) {
			gaps = append(gaps, types.FVG{Index: i + 1, Top: a.Low, Bottom: c.High, Bullish: false, Filled: gapFilled(candles[i+3:], c.High, a.Low)})
		}
	}
	if len(gaps) > 5 {
		gaps = gaps[len(gaps)-5:]
	}
	return gaps
}

func gapFilled(after []types.Candle, bottom, top decimal.Decimal) bool {
	for _, c := range after {
		if !c.Low.GreaterThan(top) && !c.High.LessThan(bottom) {
			return true
		}
	}
	return false
}

// stopHunt looks for the most recent wick piercing a liquidity pool
// level and reverting (closing back on the original side) within two
// candles.
func stopHunt(candles []types.Candle, pools []types.LiquidityPool) *types.StopHunt {
	for i := len(candles) - 3; i >= 0 && i >= len(candles)-20; i-- {
		c := candles[i]
		for _, pool := range pools {
			pierced := (pool.IsHigh && c.High.GreaterThan(pool.Price) && c.Close.LessThan(pool.Price)) ||
				(!pool.IsHigh && c.Low.LessThan(pool.Price) && c.Close.GreaterThan(pool.Price))
			if !pierced {
				continue
			}
			direction := 1
			if pool.IsHigh {
				direction = -1
			}
			reverted := false
			for j := i + 1; j < len(candles) && j <= i+2; j++ {
				if pool.IsHigh && candles[j].Close.LessThan(pool.Price) {
					reverted = true
				}
				if !pool.IsHigh && candles[j].Close.GreaterThan(pool.Price) {
					reverted = true
				}
			}
			return &types.StopHunt{Level: pool.Price, Index: i, Reverted: reverted, Direction: direction}
		}
	}
	return nil
}

