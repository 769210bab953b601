// Package indicator implements the technical indicators used by the signal
// generators: simple and exponential moving averages, Wilder's RSI, MACD and
// Bollinger bands. Every function is a pure transform over a close series;
// the output always has the same length and indexing as the input.
package indicator

import "math"

// Series holds indicator values parallel to the input series. Indices inside
// the warmup window carry no value and are marked undefined instead of being
// filled with a numeric placeholder, so callers can never mistake a warmup
// gap for a real reading.
type Series struct {
	values  []float64
	defined []bool
}

func newSeries(n int) Series {
	return Series{
		values:  make([]float64, n),
		defined: make([]bool, n),
	}
}

func (s *Series) set(i int, v float64) {
	s.values[i] = v
	s.defined[i] = true
}

// Len returns the length of the series.
func (s Series) Len() int { return len(s.values) }

// At returns the value at index i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s.values) || !s.defined[i] {
		return 0, false
	}
	return s.values[i], true
}

// Defined reports whether the indicator has a value at index i.
func (s Series) Defined(i int) bool {
	return i >= 0 && i < len(s.defined) && s.defined[i]
}

// FirstDefined returns the first index holding a defined value, or -1 when
// the whole series is undefined.
func (s Series) FirstDefined() int {
	for i, ok := range s.defined {
		if ok {
			return i
		}
	}
	return -1
}

// SMA returns the simple moving average over a trailing window of period
// values. Undefined for indices before period-1.
func SMA(values []float64, period int) Series {
	s := newSeries(len(values))
	if period < 1 || len(values) < period {
		return s
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			s.set(i, sum/float64(period))
		}
	}
	return s
}

// EMA returns the exponential moving average. The first value, at index
// period-1, is seeded with the simple mean of the first period samples; every
// later value recurses with smoothing factor 2/(period+1).
func EMA(values []float64, period int) Series {
	s := newSeries(len(values))
	if period < 1 || len(values) < period {
		return s
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	prev := sum / float64(period)
	s.set(period-1, prev)

	alpha := 2 / float64(period+1)
	for i := period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		s.set(i, prev)
	}
	return s
}

// RSI returns Wilder's relative strength index over period. The initial
// averages are simple means of the first period gains and losses; later
// values use Wilder's smoothing. Undefined for indices before period. A
// window whose average loss is zero yields exactly 100.
func RSI(values []float64, period int) Series {
	s := newSeries(len(values))
	if period < 1 || len(values) <= period {
		return s
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	s.set(period, rsiFromAverages(avgGain, avgLoss))

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		s.set(i, rsiFromAverages(avgGain, avgLoss))
	}
	return s
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDSeries holds the three lines of the MACD indicator.
type MACDSeries struct {
	MACD      Series
	Signal    Series
	Histogram Series
}

// MACD returns macd = EMA(fast) - EMA(slow), signal = EMA of the macd line
// over signalPeriod, and histogram = macd - signal. The macd line is defined
// wherever the slow EMA is; the signal line seeds from the first signalPeriod
// defined macd values, so it first appears at index slow+signalPeriod-2.
func MACD(values []float64, fast, slow, signalPeriod int) MACDSeries {
	n := len(values)
	out := MACDSeries{
		MACD:      newSeries(n),
		Signal:    newSeries(n),
		Histogram: newSeries(n),
	}

	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)
	for i := 0; i < n; i++ {
		f, okFast := fastEMA.At(i)
		sl, okSlow := slowEMA.At(i)
		if okFast && okSlow {
			out.MACD.set(i, f-sl)
		}
	}

	start := out.MACD.FirstDefined()
	if start < 0 {
		return out
	}
	compact := make([]float64, 0, n-start)
	for i := start; i < n; i++ {
		v, _ := out.MACD.At(i)
		compact = append(compact, v)
	}
	sig := EMA(compact, signalPeriod)
	for j := range compact {
		v, ok := sig.At(j)
		if !ok {
			continue
		}
		i := start + j
		out.Signal.set(i, v)
		out.Histogram.set(i, compact[j]-v)
	}
	return out
}

// BollingerBands holds the three Bollinger band series.
type BollingerBands struct {
	Upper  Series
	Middle Series
	Lower  Series
}

// Bollinger returns Bollinger bands: middle = SMA(period), upper and lower
// offset by width population standard deviations of the same window.
func Bollinger(values []float64, period int, width float64) BollingerBands {
	n := len(values)
	b := BollingerBands{
		Upper:  newSeries(n),
		Middle: newSeries(n),
		Lower:  newSeries(n),
	}
	if period < 1 || n < period {
		return b
	}
	mid := SMA(values, period)
	for i := period - 1; i < n; i++ {
		m, _ := mid.At(i)
		var sumSquares float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - m
			sumSquares += d * d
		}
		sd := math.Sqrt(sumSquares / float64(period))
		b.Middle.set(i, m)
		b.Upper.set(i, m+width*sd)
		b.Lower.set(i, m-width*sd)
	}
	return b
}
