package interpretation

import (
	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
	"github.com/sssm0ulder/astrobot-sub000/internal/database"
)

// Source is the persistence surface the store reads from
type Source interface {
	GetInterpretation(transitPlanet, natalPlanet string, aspect int) (*database.Interpretation, error)
	GetMoonSignInterpretation(sign string) (*database.MoonSignInterpretation, error)
}

// Store serves interpretation lookups with the reversed-key fallback.
// Missing keys are advisory: logged and reported as nil, never errors.
type Store struct {
	source Source
	logger *zap.Logger
}

func NewStore(source Source, logger *zap.Logger) *Store {
	return &Store{source: source, logger: logger}
}

// Aspect retrieves the text for a (transit, natal, aspect) triple. When
// the direct key is absent the reversed key (natal, transit, aspect) is
// tried, mirroring the symmetry of angular separation. A nil result
// means no text exists for either orientation.
func (s *Store) Aspect(transit, natal astro.Planet, aspect int) (*database.Interpretation, error) {
	in, err := s.source.GetInterpretation(transit.NameRu(), natal.NameRu(), aspect)
	if err != nil {
		return nil, err
	}
	if in != nil {
		return in, nil
	}

	in, err = s.source.GetInterpretation(natal.NameRu(), transit.NameRu(), aspect)
	if err != nil {
		return nil, err
	}
	if in == nil {
		s.logger.Warn("missing aspect interpretation",
			zap.String("transit", transit.String()),
			zap.String("natal", natal.String()),
			zap.Int("aspect", aspect))
	}
	return in, nil
}

// MoonSign retrieves the text for a zodiac sign; nil when absent
func (s *Store) MoonSign(sign astro.Sign) (*database.MoonSignInterpretation, error) {
	in, err := s.source.GetMoonSignInterpretation(sign.String())
	if err != nil {
		return nil, err
	}
	if in == nil {
		s.logger.Warn("missing moon sign interpretation", zap.String("sign", sign.String()))
	}
	return in, nil
}
