package indicators_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/internal/indicators"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// series builds n candles with closes rising/falling around base by step,
// one per minute, with a fixed high/low spread around the close and a
// constant tick count.
func series(n int, base, step float64) []types.Candle {
	out := make([]types.Candle, n)
	ts := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	price := base
	for i := 0; i < n; i++ {
		close := decimal.NewFromFloat(price)
		out[i] = types.Candle{
			TsOpen:    ts.Add(time.Duration(i) * time.Minute),
			Interval:  types.Timeframe15m,
			Open:      close,
			High:      close.Add(decimal.NewFromFloat(0.5)),
			Low:       close.Sub(decimal.NewFromFloat(0.5)),
			Close:     close,
			TickCount: 5,
			Sealed:    true,
		}
		price += step
	}
	return out
}

func assertInsufficientData(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an insufficient_data error, got nil")
	}
	if !errs.OfKind(err, errs.KindInsufficientData) {
		t.Errorf("expected KindInsufficientData, got %v", err)
	}
}

func TestRSIInsufficientData(t *testing.T) {
	_, err := indicators.RSI(series(5, 2400, 1), indicators.RSIPeriod)
	assertInsufficientData(t, err)
}

func TestRSIUptrendIsAbove50(t *testing.T) {
	rsi, err := indicators.RSI(series(30, 2400, 1), indicators.RSIPeriod)
	if err != nil {
		t.Fatalf("RSI: %v", err)
	}
	if !rsi.GreaterThan(decimal.NewFromInt(50)) {
		t.Errorf("rsi = %s, want > 50 for a steady uptrend", rsi)
	}
}

func TestRSIFlatSeriesIsFifty(t *testing.T) {
	rsi, err := indicators.RSI(series(30, 2400, 0), indicators.RSIPeriod)
	if err != nil {
		t.Fatalf("RSI: %v", err)
	}
	if !rsi.Equal(decimal.NewFromInt(50)) {
		t.Errorf("rsi = %s, want 50 for a flat series", rsi)
	}
}

func TestMACDInsufficientData(t *testing.T) {
	_, err := indicators.MACD(series(10, 2400, 1))
	assertInsufficientData(t, err)
}

func TestMACDUptrendIsPositive(t *testing.T) {
	r, err := indicators.MACD(series(60, 2400, 1))
	if err != nil {
		t.Fatalf("MACD: %v", err)
	}
	if !r.MACD.GreaterThan(decimal.Zero) {
		t.Errorf("macd = %s, want > 0 for a steady uptrend", r.MACD)
	}
	if !r.Histogram.Equal(r.MACD.Sub(r.Signal)) {
		t.Errorf("histogram = %s, want macd-signal = %s", r.Histogram, r.MACD.Sub(r.Signal))
	}
}

func TestBollingerInsufficientData(t *testing.T) {
	_, err := indicators.Bollinger(series(10, 2400, 1))
	assertInsufficientData(t, err)
}

func TestBollingerFlatSeriesHasZeroWidthBand(t *testing.T) {
	r, err := indicators.Bollinger(series(25, 2400, 0))
	if err != nil {
		t.Fatalf("Bollinger: %v", err)
	}
	if !r.Upper.Equal(r.Lower) {
		t.Errorf("upper = %s, lower = %s, want equal for a flat series", r.Upper, r.Lower)
	}
	if !r.Position.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("position = %s, want 0.5 for a zero-width band", r.Position)
	}
}

func TestATRInsufficientData(t *testing.T) {
	_, err := indicators.ATR(series(5, 2400, 1), indicators.ATRPeriod)
	assertInsufficientData(t, err)
}

func TestATRConstantRangeConverges(t *testing.T) {
	r, err := indicators.ATR(series(40, 2400, 0), indicators.ATRPeriod)
	if err != nil {
		t.Fatalf("ATR: %v", err)
	}
	// high-low spread is a constant 1.0 every candle.
	if !r.ATR.Equal(decimal.NewFromFloat(1.0)) {
		t.Errorf("atr = %s, want 1.0 for a constant high-low spread", r.ATR)
	}
}

func TestStochasticInsufficientData(t *testing.T) {
	_, err := indicators.Stochastic(series(5, 2400, 1))
	assertInsufficientData(t, err)
}

func TestStochasticUptrendNearHundred(t *testing.T) {
	r, err := indicators.Stochastic(series(30, 2400, 1))
	if err != nil {
		t.Fatalf("Stochastic: %v", err)
	}
	if !r.K.GreaterThan(decimal.NewFromInt(80)) {
		t.Errorf("%%K = %s, want > 80 for a steady uptrend closing at the window high", r.K)
	}
}

func TestADXInsufficientData(t *testing.T) {
	_, err := indicators.ADX(series(10, 2400, 1), indicators.ADXPeriod)
	assertInsufficientData(t, err)
}

func TestADXTrendingSeriesHasStrongPlusDI(t *testing.T) {
	r, err := indicators.ADX(series(40, 2400, 1), indicators.ADXPeriod)
	if err != nil {
		t.Fatalf("ADX: %v", err)
	}
	if !r.PlusDI.GreaterThan(r.MinusDI) {
		t.Errorf("+DI = %s, -DI = %s, want +DI dominant in an uptrend", r.PlusDI, r.MinusDI)
	}
}

func TestMFIInsufficientData(t *testing.T) {
	_, err := indicators.MFI(series(5, 2400, 1), indicators.MFIPeriod)
	assertInsufficientData(t, err)
}

func TestOBVAccumulatesOnUptrend(t *testing.T) {
	obv, err := indicators.OBV(series(10, 2400, 1))
	if err != nil {
		t.Fatalf("OBV: %v", err)
	}
	if !obv.GreaterThan(decimal.Zero) {
		t.Errorf("obv = %s, want > 0 for a steady uptrend", obv)
	}
}

func TestVWAPInsufficientData(t *testing.T) {
	_, err := indicators.VWAP(series(5, 2400, 1), indicators.VWAPPeriod)
	assertInsufficientData(t, err)
}

func TestCCIInsufficientData(t *testing.T) {
	_, err := indicators.CCI(series(5, 2400, 1), indicators.CCIPeriod)
	assertInsufficientData(t, err)
}

func TestCCIFlatSeriesIsZero(t *testing.T) {
	cci, err := indicators.CCI(series(25, 2400, 0), indicators.CCIPeriod)
	if err != nil {
		t.Fatalf("CCI: %v", err)
	}
	if !cci.IsZero() {
		t.Errorf("cci = %s, want 0 for a flat series", cci)
	}
}

func TestWilliamsRInsufficientData(t *testing.T) {
	_, err := indicators.WilliamsR(series(5, 2400, 1), indicators.WilliamsRPeriod)
	assertInsufficientData(t, err)
}

func TestWilliamsRUptrendNearZero(t *testing.T) {
	r, err := indicators.WilliamsR(series(30, 2400, 1), indicators.WilliamsRPeriod)
	if err != nil {
		t.Fatalf("WilliamsR: %v", err)
	}
	if r.LessThan(decimal.NewFromInt(-20)) {
		t.Errorf("williams_r = %s, want close to 0 for a steady uptrend closing at the window high", r)
	}
}
