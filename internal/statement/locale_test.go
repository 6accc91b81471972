package statement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr error
	}{
		{
			name:  "two digit day and month",
			input: "15/03/2024",
			want:  time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "single digit day and month",
			input: "5/3/2024",
			want:  time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "leap day on leap year",
			input: "29/02/2024",
			want:  time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "surrounding whitespace",
			input: " 01/12/2023 ",
			want:  time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "day 31 in a 30-day month",
			input:   "31/04/2024",
			wantErr: ErrMalformedDate,
		},
		{
			name:    "leap day on non-leap year",
			input:   "29/02/2023",
			wantErr: ErrMalformedDate,
		},
		{
			name:    "two digit year",
			input:   "15/03/24",
			wantErr: ErrMalformedDate,
		},
		{
			name:    "wrong separator",
			input:   "15-03-2024",
			wantErr: ErrMalformedDate,
		},
		{
			name:    "month zero",
			input:   "15/0/2024",
			wantErr: ErrMalformedDate,
		},
		{
			name:    "not a date at all",
			input:   "yesterday",
			wantErr: ErrMalformedDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "plain value",
			input: "1000,50",
			want:  "1000.5",
		},
		{
			name:  "thousands separator",
			input: "1.000,50",
			want:  "1000.5",
		},
		{
			name:  "parenthesized is negative",
			input: "(1.000,50)",
			want:  "-1000.5",
		},
		{
			name:  "currency prefix",
			input: "R$ 250,00",
			want:  "250",
		},
		{
			name:  "currency prefix inside parentheses",
			input: "(R$ 99,90)",
			want:  "-99.9",
		},
		{
			name:  "bare dollar prefix",
			input: "$42,00",
			want:  "42",
		},
		{
			name:  "no decimal part",
			input: "1.234",
			want:  "1234",
		},
		{
			name:    "multiple decimal markers",
			input:   "1,000,50",
			wantErr: ErrMalformedAmount,
		},
		{
			name:    "control character",
			input:   "10\x0000,50",
			wantErr: ErrMalformedAmount,
		},
		{
			name:    "non-numeric remainder",
			input:   "R$ abc",
			wantErr: ErrMalformedAmount,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: ErrMalformedAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			want, parseErr := decimal.NewFromString(tt.want)
			require.NoError(t, parseErr)
			assert.True(t, got.Equal(want), "got %s, want %s", got, want)
		})
	}
}

func TestParseAmount_EquivalentFormats(t *testing.T) {
	a, err := ParseAmount("1.000,00")
	require.NoError(t, err)
	b, err := ParseAmount("1000,00")
	require.NoError(t, err)
	assert.True(t, a.Equal(b), "textually different but numerically equal inputs must parse identically")
}

func TestNormalizeDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "trims and upper-cases",
			input: "  pagamento padaria  ",
			want:  "PAGAMENTO PADARIA",
		},
		{
			name:  "collapses internal whitespace runs",
			input: "transferencia \t  banco   central",
			want:  "TRANSFERENCIA BANCO CENTRAL",
		},
		{
			name:  "accents are kept",
			input: "Pagamento Padaria José",
			want:  "PAGAMENTO PADARIA JOSÉ",
		},
		{
			name:    "control character",
			input:   "pix\x01transfer",
			wantErr: ErrMalformedDescriptor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDescriptor(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
