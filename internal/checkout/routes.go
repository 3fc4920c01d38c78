package checkout

import "strings"

// Paths for the three checkout stages. The router collaborator contract is a
// fixed two-way mapping between step index and path.
const (
	CartPath     = "/cart"
	CheckoutPath = "/checkout"
	PaymentPath  = "/payment"
)

var stepPaths = []string{CartPath, CheckoutPath, PaymentPath}

// PathForStep maps a step index to its route. Out-of-range indices are
// clamped to the nearest valid step.
func PathForStep(index int) string {
	if index < 0 {
		index = 0
	}
	if index > len(stepPaths)-1 {
		index = len(stepPaths) - 1
	}
	return stepPaths[index]
}

// StepForPath maps a route back to its step index. Unknown paths resolve to
// the first step, matching the recompute-on-reload behavior of the flow.
func StepForPath(path string) int {
	path = strings.TrimSuffix(path, "/")
	for i, p := range stepPaths {
		if path == p {
			return i
		}
	}
	return 0
}
