package curve

import (
	"time"

	"github.com/shopspring/decimal"
)

// scale is the working precision of the curve. Values are truncated after
// every step, so any two evaluations of the same tick are bit-identical.
const scale = 4

var one = decimal.New(1, 0)

// Curve maps elapsed flight time to the current multiplier. Growth is
// discrete compound interest per tick: m(n) = trunc(m(n-1) * growth). No
// floating point is involved anywhere, which keeps payout arithmetic
// deterministic.
type Curve struct {
	tick     time.Duration
	growth   decimal.Decimal
	maxTicks int
}

func New(tick time.Duration, growth decimal.Decimal, maxDuration time.Duration) *Curve {
	return &Curve{
		tick:     tick,
		growth:   growth,
		maxTicks: int(maxDuration / tick),
	}
}

func (c *Curve) Tick() time.Duration {
	return c.tick
}

// At returns the multiplier after the given elapsed flight time.
func (c *Curve) At(elapsed time.Duration) decimal.Decimal {
	if elapsed < 0 {
		elapsed = 0
	}

	return c.AtTick(int(elapsed / c.tick))
}

// AtTick returns the multiplier at tick n. AtTick(0) is exactly 1.00.
func (c *Curve) AtTick(n int) decimal.Decimal {
	if n > c.maxTicks {
		n = c.maxTicks
	}

	m := one

	for i := 0; i < n; i++ {
		m = m.Mul(c.growth).Truncate(scale)
	}

	return m
}

// TicksToReach inverts the curve: the first tick at which the multiplier is
// at least target. Targets beyond the curve's ceiling saturate at maxTicks.
func (c *Curve) TicksToReach(target decimal.Decimal) int {
	m := one
	n := 0

	for m.LessThan(target) && n < c.maxTicks {
		m = m.Mul(c.growth).Truncate(scale)
		n++
	}

	return n
}

// TimeToReach is TicksToReach expressed as a flight-time offset.
func (c *Curve) TimeToReach(target decimal.Decimal) time.Duration {
	return time.Duration(c.TicksToReach(target)) * c.tick
}
