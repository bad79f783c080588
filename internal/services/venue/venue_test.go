package venue

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name      string
		value     decimal.Decimal
		wantVenue domain.Venue
		wantFee   decimal.Decimal
	}{
		{
			name:      "small trade stays retail",
			value:     decimal.NewFromInt(50),
			wantVenue: domain.VenueRetail,
			wantFee:   decimal.NewFromFloat(0.625), // 50 * 1.25%
		},
		{
			name:      "exactly 100 stays retail",
			value:     decimal.NewFromInt(100),
			wantVenue: domain.VenueRetail,
			wantFee:   decimal.NewFromFloat(1.25),
		},
		{
			name:      "above 100 routes to pro",
			value:     decimal.NewFromInt(1000),
			wantVenue: domain.VenuePro,
			wantFee:   decimal.NewFromFloat(2.5), // 1000 * 0.25%
		},
		{
			name:      "just above the floor routes to pro",
			value:     decimal.NewFromFloat(100.01),
			wantVenue: domain.VenuePro,
			wantFee:   decimal.NewFromFloat(0.250025),
		},
		{
			name:      "zero value trade",
			value:     decimal.Zero,
			wantVenue: domain.VenueRetail,
			wantFee:   decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote := Select(tt.value)
			assert.Equal(t, tt.wantVenue, quote.Venue)
			assert.True(t, tt.wantFee.Equal(quote.Fee), "fee %s, want %s", quote.Fee, tt.wantFee)
		})
	}
}

func TestProIsCheaperAboveFloor(t *testing.T) {
	// pro must never be selected when it is not strictly cheaper
	for _, v := range []int64{101, 500, 10000, 1000000} {
		value := decimal.NewFromInt(v)
		quote := Select(value)
		assert.Equal(t, domain.VenuePro, quote.Venue)
		assert.True(t, quote.Fee.LessThan(value.Mul(decimal.NewFromFloat(0.0125))))
	}
}
