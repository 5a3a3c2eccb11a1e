package domain

import (
	"fmt"
	"math/big"
	"time"
)

// CoordScale is the fixed-point scale used for on-chain coordinates.
const CoordScale = 1_000_000

// Market is a binary rain/no-rain prediction market as stored on-chain.
// Stakes are USDC amounts with 6 decimals.
type Market struct {
	ID            uint64
	Creator       string
	Question      string
	Lat           int64 // degrees * 1e6
	Lng           int64 // degrees * 1e6
	EndTime       int64 // unix seconds; 0 means unset
	Resolved      bool
	Outcome       bool
	TotalYesStake *big.Int
	TotalNoStake  *big.Int
}

// Location converts the fixed-point coordinates to degrees.
func (m Market) Location() Location {
	return Location{
		Lat: float64(m.Lat) / CoordScale,
		Lng: float64(m.Lng) / CoordScale,
	}
}

// EndsAt returns the market deadline.
func (m Market) EndsAt() time.Time {
	return time.Unix(m.EndTime, 0).UTC()
}

// TotalStake returns the combined size of both sides of the pool.
func (m Market) TotalStake() *big.Int {
	total := new(big.Int)
	if m.TotalYesStake != nil {
		total.Add(total, m.TotalYesStake)
	}
	if m.TotalNoStake != nil {
		total.Add(total, m.TotalNoStake)
	}
	return total
}

// Location is a point in decimal degrees.
type Location struct {
	Lat float64
	Lng float64
}

// String formats the location the way the weather APIs accept it in a
// single query parameter, e.g. "51.5074,-0.1278".
func (l Location) String() string {
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lng)
}

// OutcomeLabel renders a boolean outcome as YES or NO.
func OutcomeLabel(yes bool) string {
	if yes {
		return "YES"
	}
	return "NO"
}
