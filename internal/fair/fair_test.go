package fair

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestSource() *Source {
	return New(
		decimal.RequireFromString("0.03"),
		decimal.RequireFromString("1.00"),
		decimal.RequireFromString("50.00"),
	)
}

func TestCrashPointDeterministic(t *testing.T) {
	t.Parallel()

	s := newTestSource()

	seed, err := s.GenerateSeed()
	if err != nil {
		t.Fatalf("generate seed: %v", err)
	}

	first := s.CrashPoint(seed, 42)
	second := s.CrashPoint(seed, 42)

	if !first.Equal(second) {
		t.Errorf("crash point not reproducible: %s vs %s", first, second)
	}

	other := s.CrashPoint(seed, 43)
	if first.Equal(other) {
		t.Errorf("different rounds produced identical crash point %s", first)
	}
}

func TestCrashPointRange(t *testing.T) {
	t.Parallel()

	s := newTestSource()

	seed, err := s.GenerateSeed()
	if err != nil {
		t.Fatalf("generate seed: %v", err)
	}

	min := decimal.RequireFromString("1.00")
	max := decimal.RequireFromString("50.00")

	for round := uint64(0); round < 5000; round++ {
		crash := s.CrashPoint(seed, round)

		if crash.LessThan(min) || crash.GreaterThan(max) {
			t.Fatalf("round %d: crash point %s out of range", round, crash)
		}
	}
}

func TestInstantCrashFraction(t *testing.T) {
	t.Parallel()

	s := newTestSource()

	seed, err := s.GenerateSeed()
	if err != nil {
		t.Fatalf("generate seed: %v", err)
	}

	const rounds = 20000

	instant := 0
	one := decimal.RequireFromString("1.00")

	for round := uint64(0); round < rounds; round++ {
		if s.CrashPoint(seed, round).Equal(one) {
			instant++
		}
	}

	// u < edge maps to 1.00, so the instant-crash rate tracks the house
	// edge. Allow generous slack for a 20k sample.
	fraction := float64(instant) / rounds
	if fraction < 0.015 || fraction > 0.045 {
		t.Errorf("instant crash fraction %f too far from house edge 0.03", fraction)
	}
}

func TestCommitmentMatchesRevealedSeed(t *testing.T) {
	t.Parallel()

	s := newTestSource()

	seed, err := s.GenerateSeed()
	if err != nil {
		t.Fatalf("generate seed: %v", err)
	}

	commitment := Commitment(seed)

	if !Verify(seed, commitment) {
		t.Error("revealed seed does not verify against its commitment")
	}

	if Verify(seed+"00", commitment) {
		t.Error("tampered seed verified against commitment")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy unavailable")
}

func TestGenerateSeedFailsClosed(t *testing.T) {
	t.Parallel()

	s := NewWithEntropy(
		decimal.RequireFromString("0.03"),
		decimal.RequireFromString("1.00"),
		decimal.RequireFromString("50.00"),
		failingReader{},
	)

	if _, err := s.GenerateSeed(); err == nil {
		t.Error("expected error when entropy source fails")
	}
}
