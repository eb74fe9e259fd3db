package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

const seedBytes = 32

var two64 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64), 0)

// Source derives crash points from a committed server seed. The mapping is
// crash = (1-edge)/(1-u) with u uniform in [0,1), truncated to 2 decimal
// places and clamped to [min, max]. An edge-sized fraction of outcomes lands
// below 1.00 and clamps to an instant crash, which is what keeps the
// expected player return at 1-edge.
type Source struct {
	edge decimal.Decimal
	min  decimal.Decimal
	max  decimal.Decimal

	entropy io.Reader
}

func New(houseEdge, min, max decimal.Decimal) *Source {
	return &Source{
		edge:    houseEdge,
		min:     min,
		max:     max,
		entropy: rand.Reader,
	}
}

// NewWithEntropy is used by tests to simulate entropy exhaustion.
func NewWithEntropy(houseEdge, min, max decimal.Decimal, entropy io.Reader) *Source {
	s := New(houseEdge, min, max)
	s.entropy = entropy

	return s
}

// GenerateSeed reads the server seed from the entropy source. A failed read
// is returned as-is so the caller can refuse to start the round.
func (s *Source) GenerateSeed() (string, error) {
	const op = "fair.GenerateSeed"

	buf := make([]byte, seedBytes)

	if _, err := io.ReadFull(s.entropy, buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hex.EncodeToString(buf), nil
}

// Commitment is the hash published before the betting window opens.
func Commitment(seed string) string {
	sum := sha256.Sum256([]byte(seed))

	return hex.EncodeToString(sum[:])
}

// Commitment satisfies the engine's CrashSource contract.
func (s *Source) Commitment(seed string) string {
	return Commitment(seed)
}

// Verify checks a revealed seed against its published commitment.
func Verify(seed, commitment string) bool {
	return Commitment(seed) == commitment
}

// CrashPoint is deterministic: the same seed and round always produce the
// same multiplier, so any party can recompute it after the seed reveal.
func (s *Source) CrashPoint(seed string, round uint64) decimal.Decimal {
	mac := hmac.New(sha256.New, []byte(seed))
	mac.Write([]byte(strconv.FormatUint(round, 10)))
	sum := mac.Sum(nil)

	u64 := binary.BigEndian.Uint64(sum[:8])
	u := decimal.NewFromBigInt(new(big.Int).SetUint64(u64), 0).Div(two64)

	crash := decimal.NewFromInt(1).Sub(s.edge).
		Div(decimal.NewFromInt(1).Sub(u)).
		Truncate(2)

	if crash.LessThan(s.min) {
		return s.min
	}

	if crash.GreaterThan(s.max) {
		return s.max
	}

	return crash
}
