package tokens

import (
	"fmt"
	"strings"

	"github.com/pocketomega/repolens/internal/compact"
)

// Estimator kinds accepted by New.
const (
	KindHeuristic = "heuristic"
	KindTiktoken  = "tiktoken"
)

// New returns the estimator named by kind. model only matters for tiktoken.
func New(kind, model string) (compact.Estimator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindHeuristic:
		return Heuristic{}, nil
	case KindTiktoken:
		return NewTiktoken(model), nil
	default:
		return nil, fmt.Errorf("tokens: unknown estimator %q (want %s or %s)", kind, KindHeuristic, KindTiktoken)
	}
}
