package checkout

// Step is one stage of the checkout flow. The position of a step in its
// sequence is meaningful: earlier steps must be reached before later ones.
type Step struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DefaultSteps returns the storefront's fixed three-stage sequence.
func DefaultSteps() []Step {
	return []Step{
		{ID: "cart", Label: "Shopping Bag"},
		{ID: "checkout", Label: "Shipping & Billing"},
		{ID: "payment", Label: "Payment"},
	}
}

// Observer is notified synchronously whenever the active step changes,
// e.g. to sync the route. It is an in-process callback, never a network call.
type Observer func(index int)

// Controller governs which step of a fixed sequence is active and which
// transitions are allowed. Users may freely go back, but never ahead of the
// furthest step they have reached. No operation can fail: out-of-range
// indices are clamped and skip-ahead requests are ignored.
type Controller struct {
	steps      []Step
	current    int
	maxVisited int
	observer   Observer
}

// NewController creates a controller starting at the given index.
// The start index is clamped into range and becomes the initial high-water
// mark, so a session entered mid-flow (e.g. from a deep link) can still
// navigate back to earlier steps.
func NewController(steps []Step, start int) *Controller {
	c := &Controller{steps: steps}
	c.current = c.clamp(start)
	c.maxVisited = c.current
	return c
}

// Restore rebuilds a controller from previously recorded progress.
// Both indices are clamped and the current <= maxVisited invariant is
// re-established if the stored values disagree.
func Restore(steps []Step, current, maxVisited int) *Controller {
	c := &Controller{steps: steps}
	c.maxVisited = c.clamp(maxVisited)
	c.current = c.clamp(current)
	if c.current > c.maxVisited {
		c.maxVisited = c.current
	}
	return c
}

// SetObserver registers the route-sync callback. Passing nil detaches it.
func (c *Controller) SetObserver(fn Observer) {
	c.observer = fn
}

// Steps returns the step sequence.
func (c *Controller) Steps() []Step {
	return c.steps
}

// Current returns the index of the active step.
func (c *Controller) Current() int {
	return c.current
}

// MaxVisited returns the high-water mark of progress.
func (c *Controller) MaxVisited() int {
	return c.maxVisited
}

// GoToStep activates the given step if the user has already reached it.
// Requests ahead of the high-water mark are silently ignored so users
// cannot skip forward by clicking a later step indicator.
func (c *Controller) GoToStep(index int) {
	if index < 0 || index > c.maxVisited {
		return
	}
	c.setCurrent(index)
}

// Advance moves one step forward, clamped to the last step. This is the only
// operation that can raise the high-water mark.
func (c *Controller) Advance() {
	next := c.clamp(c.current + 1)
	if next > c.maxVisited {
		c.maxVisited = next
	}
	c.setCurrent(next)
}

// Retreat moves one step back, clamped to the first step. The high-water
// mark is left untouched.
func (c *Controller) Retreat() {
	c.setCurrent(c.clamp(c.current - 1))
}

// IsStepComplete reports whether the step at index has been passed.
func (c *Controller) IsStepComplete(index int) bool {
	return index < c.current || index <= c.maxVisited-1
}

// IsStepClickable reports whether the step indicator at index may be
// activated by the user.
func (c *Controller) IsStepClickable(index int) bool {
	return index >= 0 && index <= c.maxVisited
}

func (c *Controller) setCurrent(index int) {
	if index == c.current {
		return
	}
	c.current = index
	if c.observer != nil {
		c.observer(index)
	}
}

func (c *Controller) clamp(index int) int {
	if index < 0 {
		return 0
	}
	if last := len(c.steps) - 1; index > last {
		if last < 0 {
			return 0
		}
		return last
	}
	return index
}
