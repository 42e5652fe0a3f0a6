package astro

import "math"

// Sign is one of the twelve zodiac signs
type Sign int

const (
	Aries Sign = iota
	Taurus
	Gemini
	Cancer
	Leo
	Virgo
	Libra
	Scorpio
	Sagittarius
	Capricorn
	Aquarius
	Pisces
)

var signNames = [...]string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

func (s Sign) String() string {
	if s < Aries || s > Pisces {
		return "Unknown"
	}
	return signNames[s]
}

// signBandWidth is the ecliptic span of one sign
const signBandWidth = 30.0

// SignOf maps an ecliptic longitude in degrees to its zodiac sign.
// Band boundaries belong to the upper band: SignOf(30) is Taurus.
func SignOf(lonDeg float64) Sign {
	lon := normDeg(lonDeg)
	return Sign(int(lon/signBandWidth) % 12)
}

// SignBounds returns the lower and upper ecliptic longitudes of a sign
func SignBounds(s Sign) (lower, upper float64) {
	lower = float64(s) * signBandWidth
	return lower, lower + signBandWidth
}

// normDeg reduces an angle in degrees to [0, 360)
func normDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
