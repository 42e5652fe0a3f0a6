// Package interpretation loads and serves the narrative text tables:
// aspect interpretations keyed by (transit, natal, aspect) and
// moon-sign interpretations keyed by sign.
package interpretation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
	"github.com/sssm0ulder/astrobot-sub000/internal/database"
)

// planetsByNameRu resolves the Russian planet names used in the CSV files
var planetsByNameRu = func() map[string]astro.Planet {
	m := make(map[string]astro.Planet, len(astro.NatalPlanets))
	for _, p := range astro.NatalPlanets {
		m[p.NameRu()] = p
	}
	return m
}()

// signsByName resolves the English sign names used in the CSV files
var signsByName = func() map[string]astro.Sign {
	m := make(map[string]astro.Sign, 12)
	for s := astro.Aries; s <= astro.Pisces; s++ {
		m[strings.ToLower(s.String())] = s
	}
	return m
}()

// ParseAspectCSV reads aspect interpretation rows. Each row is
// (transit_planet_ru, natal_planet_ru, aspect, general, favorable,
// unfavorable). Rows with unknown planet names or unparsable aspect
// angles are skipped, not errors; their count is returned.
func ParseAspectCSV(r io.Reader) ([]*database.Interpretation, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows []*database.Interpretation
	skipped := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read aspect csv line %d: %w", line, err)
		}
		if len(record) < 6 {
			skipped++
			continue
		}

		transit, okT := planetsByNameRu[strings.TrimSpace(record[0])]
		natal, okN := planetsByNameRu[strings.TrimSpace(record[1])]
		aspect, errA := strconv.Atoi(strings.TrimSpace(record[2]))
		if !okT || !okN || errA != nil {
			skipped++
			continue
		}

		rows = append(rows, &database.Interpretation{
			TransitPlanet: transit.NameRu(),
			NatalPlanet:   natal.NameRu(),
			Aspect:        aspect,
			General:       record[3],
			Favorable:     record[4],
			Unfavorable:   record[5],
		})
	}

	return rows, skipped, nil
}

// ParseMoonSignCSV reads moon-sign interpretation rows. Each row is
// (sign_en, general, favorable, unfavorable). Rows with unknown sign
// names are skipped.
func ParseMoonSignCSV(r io.Reader) ([]*database.MoonSignInterpretation, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows []*database.MoonSignInterpretation
	skipped := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read moon sign csv line %d: %w", line, err)
		}
		if len(record) < 4 {
			skipped++
			continue
		}

		sign, ok := signsByName[strings.ToLower(strings.TrimSpace(record[0]))]
		if !ok {
			skipped++
			continue
		}

		rows = append(rows, &database.MoonSignInterpretation{
			Sign:        sign.String(),
			General:     record[1],
			Favorable:   record[2],
			Unfavorable: record[3],
		})
	}

	return rows, skipped, nil
}
