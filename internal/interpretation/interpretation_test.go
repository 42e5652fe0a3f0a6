package interpretation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
	"github.com/sssm0ulder/astrobot-sub000/internal/database"
)

type fakeSource struct {
	aspects map[[2]string]map[int]*database.Interpretation
	signs   map[string]*database.MoonSignInterpretation
}

func (f *fakeSource) GetInterpretation(transit, natal string, aspect int) (*database.Interpretation, error) {
	byAspect, ok := f.aspects[[2]string{transit, natal}]
	if !ok {
		return nil, nil
	}
	return byAspect[aspect], nil
}

func (f *fakeSource) GetMoonSignInterpretation(sign string) (*database.MoonSignInterpretation, error) {
	return f.signs[sign], nil
}

func testStore() (*Store, *fakeSource) {
	src := &fakeSource{
		aspects: map[[2]string]map[int]*database.Interpretation{
			{"Солнце", "Луна"}: {
				90: {TransitPlanet: "Солнце", NatalPlanet: "Луна", Aspect: 90, General: "sun-moon square"},
			},
		},
		signs: map[string]*database.MoonSignInterpretation{
			"Taurus": {Sign: "Taurus", General: "steady"},
		},
	}
	return NewStore(src, zap.NewNop()), src
}

func TestAspectDirectKey(t *testing.T) {
	store, _ := testStore()

	in, err := store.Aspect(astro.Sun, astro.Moon, 90)
	require.NoError(t, err)
	require.NotNil(t, in)
	require.Equal(t, "sun-moon square", in.General)
}

func TestAspectReversedFallback(t *testing.T) {
	store, _ := testStore()

	// only (Sun, Moon, 90) is stored; the swapped query must still hit it
	in, err := store.Aspect(astro.Moon, astro.Sun, 90)
	require.NoError(t, err)
	require.NotNil(t, in)
	require.Equal(t, "sun-moon square", in.General)
}

func TestAspectMissing(t *testing.T) {
	store, _ := testStore()

	in, err := store.Aspect(astro.Mars, astro.Venus, 120)
	require.NoError(t, err)
	require.Nil(t, in)
}

func TestMoonSignLookup(t *testing.T) {
	store, _ := testStore()

	in, err := store.MoonSign(astro.Taurus)
	require.NoError(t, err)
	require.NotNil(t, in)
	require.Equal(t, "steady", in.General)

	in, err = store.MoonSign(astro.Leo)
	require.NoError(t, err)
	require.Nil(t, in)
}

func TestParseAspectCSV(t *testing.T) {
	data := strings.Join([]string{
		"Солнце,Луна,90,general text,good,bad",
		"Квазар,Луна,90,unknown transit body,x,y",
		"Марс,Венера,abc,bad aspect angle,x,y",
		"Марс,Венера,120,trine text,go,stop",
		"short,row",
	}, "\n")

	rows, skipped, err := ParseAspectCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 3, skipped)

	require.Equal(t, "Солнце", rows[0].TransitPlanet)
	require.Equal(t, "Луна", rows[0].NatalPlanet)
	require.Equal(t, 90, rows[0].Aspect)
	require.Equal(t, "general text", rows[0].General)
	require.Equal(t, "good", rows[0].Favorable)
	require.Equal(t, "bad", rows[0].Unfavorable)

	require.Equal(t, "Марс", rows[1].TransitPlanet)
	require.Equal(t, 120, rows[1].Aspect)
}

func TestParseMoonSignCSV(t *testing.T) {
	data := strings.Join([]string{
		"taurus,steady,plant,rush",
		"Leo,bold,lead,sulk",
		"ophiuchus,not a zodiac sign,x,y",
	}, "\n")

	rows, skipped, err := ParseMoonSignCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, skipped)
	require.Equal(t, "Taurus", rows[0].Sign)
	require.Equal(t, "Leo", rows[1].Sign)
}
