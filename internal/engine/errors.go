package engine

import "fmt"

// DataError reports a client-correctable input problem: too few tickers
// survived cleaning, or the price history was empty. Handlers map it to a
// 422 response with the message intact.
type DataError struct {
	Reason string
}

func (e *DataError) Error() string {
	return e.Reason
}

// OptimizationError reports an unrecoverable solver failure: the max-Sharpe
// problem failed AND the min-variance fallback failed too.
type OptimizationError struct {
	Stage string // which solve failed last
	Err   error
}

func (e *OptimizationError) Error() string {
	return fmt.Sprintf("optimization failed (%s): %v", e.Stage, e.Err)
}

func (e *OptimizationError) Unwrap() error {
	return e.Err
}

// NumericalError reports a degenerate numerical situation that cannot be
// papered over with an epsilon floor, such as a portfolio with effectively
// zero volatility.
type NumericalError struct {
	Reason string
}

func (e *NumericalError) Error() string {
	return e.Reason
}
