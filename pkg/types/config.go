package types

import "fmt"

// StrategyType identifies one of the supported strategy rule sets.
type StrategyType string

const (
	StrategySMACrossover StrategyType = "sma_crossover"
	StrategyRSI          StrategyType = "rsi"
	StrategyMACD         StrategyType = "macd"
)

// Default strategy parameters, applied by the request layer when a field is
// omitted. The engine itself never fills defaults.
const (
	DefaultShortPeriod     = 10
	DefaultLongPeriod      = 50
	DefaultRSIPeriod       = 14
	DefaultOversold        = 30
	DefaultOverbought      = 70
	DefaultFastPeriod      = 12
	DefaultSlowPeriod      = 26
	DefaultSignalPeriod    = 9
	DefaultPositionSizePct = 10
	DefaultInitialCapital  = 1000000
)

// StrategyConfig represents a strategy definition as submitted by clients.
// Parameter fields are flat to match the wire format; only the fields for the
// selected strategy type are consulted.
type StrategyConfig struct {
	Name            string       `json:"name,omitempty"`
	StrategyType    StrategyType `json:"type" validate:"required,oneof=sma_crossover rsi macd"`
	Symbol          string       `json:"symbol" validate:"required"`
	PositionSizePct float64      `json:"positionSize" validate:"gt=0,lte=100"`
	InitialCapital  float64      `json:"initialCapital" validate:"gt=0"`

	// sma_crossover
	ShortPeriod int `json:"shortPeriod,omitempty" validate:"omitempty,min=1"`
	LongPeriod  int `json:"longPeriod,omitempty" validate:"omitempty,min=1"`

	// rsi
	RSIPeriod  int     `json:"rsiPeriod,omitempty" validate:"omitempty,min=1"`
	Oversold   float64 `json:"oversold,omitempty" validate:"omitempty,gte=0,lt=100"`
	Overbought float64 `json:"overbought,omitempty" validate:"omitempty,gt=0,lte=100"`

	// macd
	FastPeriod   int `json:"fastPeriod,omitempty" validate:"omitempty,min=1"`
	SlowPeriod   int `json:"slowPeriod,omitempty" validate:"omitempty,min=1"`
	SignalPeriod int `json:"signalPeriod,omitempty" validate:"omitempty,min=1"`
}

// InvalidConfigError reports a strategy configuration that violates its
// constraints. The caller has to fix the configuration; the engine never
// retries.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid strategy config: %s %s", e.Field, e.Reason)
}

// ApplyDefaults fills omitted (zero) parameter fields with the conventional
// defaults. Request handlers call this before validation; the engine operates
// on the config exactly as given.
func (c *StrategyConfig) ApplyDefaults() {
	if c.PositionSizePct == 0 {
		c.PositionSizePct = DefaultPositionSizePct
	}
	if c.InitialCapital == 0 {
		c.InitialCapital = DefaultInitialCapital
	}
	switch c.StrategyType {
	case StrategySMACrossover:
		if c.ShortPeriod == 0 {
			c.ShortPeriod = DefaultShortPeriod
		}
		if c.LongPeriod == 0 {
			c.LongPeriod = DefaultLongPeriod
		}
	case StrategyRSI:
		if c.RSIPeriod == 0 {
			c.RSIPeriod = DefaultRSIPeriod
		}
		if c.Oversold == 0 {
			c.Oversold = DefaultOversold
		}
		if c.Overbought == 0 {
			c.Overbought = DefaultOverbought
		}
	case StrategyMACD:
		if c.FastPeriod == 0 {
			c.FastPeriod = DefaultFastPeriod
		}
		if c.SlowPeriod == 0 {
			c.SlowPeriod = DefaultSlowPeriod
		}
		if c.SignalPeriod == 0 {
			c.SignalPeriod = DefaultSignalPeriod
		}
	}
}

// Validate checks every constraint on the config and returns an
// *InvalidConfigError naming the first violated field.
func (c *StrategyConfig) Validate() error {
	switch c.StrategyType {
	case StrategySMACrossover, StrategyRSI, StrategyMACD:
	case "":
		return &InvalidConfigError{Field: "type", Reason: "is required"}
	default:
		return &InvalidConfigError{Field: "type", Reason: fmt.Sprintf("unknown strategy type %q", c.StrategyType)}
	}
	if c.Symbol == "" {
		return &InvalidConfigError{Field: "symbol", Reason: "is required"}
	}
	if c.PositionSizePct <= 0 || c.PositionSizePct > 100 {
		return &InvalidConfigError{Field: "positionSize", Reason: "must be in (0, 100]"}
	}
	if c.InitialCapital <= 0 {
		return &InvalidConfigError{Field: "initialCapital", Reason: "must be positive"}
	}

	switch c.StrategyType {
	case StrategySMACrossover:
		if c.ShortPeriod < 1 {
			return &InvalidConfigError{Field: "shortPeriod", Reason: "must be at least 1"}
		}
		if c.LongPeriod < 1 {
			return &InvalidConfigError{Field: "longPeriod", Reason: "must be at least 1"}
		}
		if c.ShortPeriod >= c.LongPeriod {
			return &InvalidConfigError{Field: "shortPeriod", Reason: "must be less than longPeriod"}
		}
	case StrategyRSI:
		if c.RSIPeriod < 1 {
			return &InvalidConfigError{Field: "rsiPeriod", Reason: "must be at least 1"}
		}
		if c.Oversold < 0 || c.Oversold >= 100 {
			return &InvalidConfigError{Field: "oversold", Reason: "must be in [0, 100)"}
		}
		if c.Overbought <= c.Oversold || c.Overbought > 100 {
			return &InvalidConfigError{Field: "overbought", Reason: "must be in (oversold, 100]"}
		}
	case StrategyMACD:
		if c.FastPeriod < 1 {
			return &InvalidConfigError{Field: "fastPeriod", Reason: "must be at least 1"}
		}
		if c.SlowPeriod < 1 {
			return &InvalidConfigError{Field: "slowPeriod", Reason: "must be at least 1"}
		}
		if c.FastPeriod >= c.SlowPeriod {
			return &InvalidConfigError{Field: "fastPeriod", Reason: "must be less than slowPeriod"}
		}
		if c.SignalPeriod < 1 {
			return &InvalidConfigError{Field: "signalPeriod", Reason: "must be at least 1"}
		}
	}
	return nil
}
