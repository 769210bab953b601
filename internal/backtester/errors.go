package backtester

import "fmt"

// InsufficientDataError reports a price series shorter than the minimum
// lookback the requested strategy needs. The caller should fetch a longer
// history or shorten the strategy periods; the engine never retries.
type InsufficientDataError struct {
	Symbol   string
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d bars, have %d", e.Symbol, e.Required, e.Got)
}
