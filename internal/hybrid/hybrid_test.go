package hybrid_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/internal/combiner"
	"github.com/sezginpak/gold-analyzer/internal/hybrid"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

func candles(n int, base float64, step float64) []types.Candle {
	out := make([]types.Candle, n)
	price := base
	for i := 0; i < n; i++ {
		open := price
		price += step
		close := price
		high := close + 0.5
		low := open - 0.5
		if low > close {
			low = close - 0.5
		}
		out[i] = types.Candle{
			TsOpen:    time.Now().Add(time.Duration(i) * time.Minute),
			Interval:  types.Timeframe15m,
			Open:      decimal.NewFromFloat(open),
			High:      decimal.NewFromFloat(high),
			Low:       decimal.NewFromFloat(low),
			Close:     decimal.NewFromFloat(close),
			TickCount: 5,
			Sealed:    true,
		}
	}
	return out
}

func ticks(n int, ounceBase, ounceStep, usdTryBase, usdTryStep float64) []types.PriceQuote {
	out := make([]types.PriceQuote, n)
	ounce := ounceBase
	usdTry := usdTryBase
	for i := 0; i < n; i++ {
		ounce += ounceStep
		usdTry += usdTryStep
		out[i] = types.PriceQuote{
			Timestamp: time.Now().Add(time.Duration(i) * time.Second),
			GramGold:  decimal.NewFromFloat(2450),
			OunceUSD:  decimal.NewFromFloat(ounce),
			USDTRY:    decimal.NewFromFloat(usdTry),
			OunceTRY:  decimal.NewFromFloat(ounce * usdTry),
		}
	}
	return out
}

func testStrategy() *hybrid.Strategy {
	return hybrid.New(combiner.ParamsFromConfig(types.DefaultEngineConfig()))
}

func TestAnalyzeReturnsInsufficientDataBelowMinCandles(t *testing.T) {
	s := testStrategy()
	record := s.Analyze(types.Timeframe15m, candles(5, 2400, 1), ticks(20, 2000, 0.1, 32, 0))

	if record.Signal != types.SignalHold {
		t.Fatalf("signal = %s, want HOLD", record.Signal)
	}
}

func TestAnalyzeRunsFullPipelineOnSufficientHistory(t *testing.T) {
	s := testStrategy()
	record := s.Analyze(types.Timeframe15m, candles(60, 2400, 1), ticks(60, 2000, 0.2, 32, 0.0001))

	if record.Timeframe != types.Timeframe15m {
		t.Errorf("timeframe = %s, want 15m", record.Timeframe)
	}
	if record.GramPrice.IsZero() {
		t.Errorf("gram_price should be populated from the last candle close")
	}
}

func TestAnalyzeHandlesFlatTicksWithoutPanicking(t *testing.T) {
	s := testStrategy()
	flat := ticks(30, 2000, 0, 32, 0)
	record := s.Analyze(types.Timeframe1h, candles(60, 2400, 0), flat)

	if record.Timeframe != types.Timeframe1h {
		t.Errorf("timeframe = %s, want 1h", record.Timeframe)
	}
}
