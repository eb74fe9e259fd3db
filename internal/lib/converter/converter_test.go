package converter

import "testing"

func TestAmountToCents(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		want   int64
	}{
		{
			name:   "Success",
			amount: 1.23,
			want:   123,
		},
		{
			name:   "Zero",
			amount: 0,
			want:   0,
		},
		{
			name:   "Negative",
			amount: -1.23,
			want:   -123,
		},
		{
			name:   "NoBinaryDrift",
			amount: 19.99,
			want:   1999,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := AmountToCents(tc.amount)
			if got != tc.want {
				t.Errorf("unexpected result, want: %d, got: %d", tc.want, got)
			}
		})
	}
}

func TestCentsToString(t *testing.T) {
	cases := []struct {
		name  string
		cents int64
		want  string
	}{
		{
			name:  "Success",
			cents: 123,
			want:  "1.23",
		},
		{
			name:  "Zero",
			cents: 0,
			want:  "0.00",
		},
		{
			name:  "Whole",
			cents: 20000,
			want:  "200.00",
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := CentsToString(tc.cents)
			if got != tc.want {
				t.Errorf("unexpected result, want: %s, got: %s", tc.want, got)
			}
		})
	}
}
