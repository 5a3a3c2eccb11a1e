package domain

import (
	"math/big"
	"testing"
)

func TestFormatUSDC(t *testing.T) {
	tests := []struct {
		raw  *big.Int
		want string
	}{
		{nil, "0.00"},
		{big.NewInt(0), "0.00"},
		{big.NewInt(1_000_000_000), "1000.00"},
		{big.NewInt(15_000_000), "15.00"},
		{big.NewInt(1_234_567), "1.23"},
	}
	for _, tt := range tests {
		if got := FormatUSDC(tt.raw); got != tt.want {
			t.Errorf("FormatUSDC(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestMarketLocation(t *testing.T) {
	m := Market{Lat: 51_507_400, Lng: -127_800}
	if got := m.Location().String(); got != "51.5074,-0.1278" {
		t.Errorf("Location().String() = %q", got)
	}
	if m.TotalStake().Sign() != 0 {
		t.Errorf("TotalStake with nil stakes = %v, want 0", m.TotalStake())
	}
}
