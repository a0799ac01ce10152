package compact

import "fmt"

// Estimator prices text in tokens. Implementations must be deterministic and
// return 0 for empty text. See internal/tokens for the concrete estimators.
type Estimator interface {
	Estimate(text string) (int, error)
}

// EstimatorFunc adapts a plain function to Estimator.
type EstimatorFunc func(text string) (int, error)

// Estimate implements Estimator.
func (f EstimatorFunc) Estimate(text string) (int, error) { return f(text) }

// EstimateTotal sums the independent estimates of every entry's content.
func EstimateTotal(est Estimator, entries []Entry) (int, error) {
	total := 0
	for i, e := range entries {
		n, err := estimate(est, e.Content)
		if err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}

func estimate(est Estimator, text string) (int, error) {
	n, err := est.Estimate(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEstimation, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative estimate %d", ErrEstimation, n)
	}
	return n, nil
}
