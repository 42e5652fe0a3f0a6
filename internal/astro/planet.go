package astro

// Planet identifies one of the ten bodies used in forecasts
type Planet int

const (
	Sun Planet = iota
	Moon
	Mercury
	Venus
	Mars
	Jupiter
	Saturn
	Uranus
	Neptune
	Pluto
)

var planetNames = [...]string{
	"Sun", "Moon", "Mercury", "Venus", "Mars",
	"Jupiter", "Saturn", "Uranus", "Neptune", "Pluto",
}

// Interpretation tables are keyed by Russian planet names, so the
// importer and lookup both go through NameRu.
var planetNamesRu = [...]string{
	"Солнце", "Луна", "Меркурий", "Венера", "Марс",
	"Юпитер", "Сатурн", "Уран", "Нептун", "Плутон",
}

func (p Planet) String() string {
	if p < Sun || p > Pluto {
		return "Unknown"
	}
	return planetNames[p]
}

// NameRu returns the Russian planet name used as interpretation key
func (p Planet) NameRu() string {
	if p < Sun || p > Pluto {
		return ""
	}
	return planetNamesRu[p]
}

// NatalPlanets is the full body set evaluated at the birth instant
var NatalPlanets = []Planet{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto}

// TransitPlanets is the fast-moving set scanned over forecast periods
var TransitPlanets = []Planet{Sun, Moon, Mercury, Venus, Mars}
