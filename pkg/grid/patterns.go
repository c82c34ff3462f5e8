package grid

import (
	"errors"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/powercast/powercast/pkg/common"
)

var ErrPatternNotFound = errors.New("Pattern not found")

// detectedPatterns is how many templates are reported as currently active.
const detectedPatterns = 4

type Pattern struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLabel string          `json:"confidence_label"`
	DetectedAt      time.Time       `json:"detected_at"`
	Applied         bool            `json:"applied"`
	Details         *PatternDetails `json:"details,omitempty"`
}

func confidenceLabel(c float64) string {
	switch {
	case c >= 0.8:
		return "High"
	case c >= 0.6:
		return "Medium"
	default:
		return "Low"
	}
}

func (s *Service) pattern(t patternTemplate) Pattern {
	var replacements []string
	for _, key := range slices.Sorted(maps.Keys(t.Choices)) {
		opts := t.Choices[key]
		if len(opts) == 0 {
			continue
		}
		replacements = append(replacements, "{"+key+"}", opts[s.rng.IntRange(0, len(opts)-1)])
	}
	if t.Magnitude != nil {
		mag := s.rng.Uniform(t.Magnitude[0], t.Magnitude[1])
		replacements = append(replacements, "{magnitude}", strconv.FormatFloat(mag, 'f', 1, 64))
	}
	if t.Minutes != nil {
		replacements = append(replacements, "{minutes}", strconv.Itoa(s.rng.IntRange(t.Minutes[0], t.Minutes[1])))
	}
	confidence := common.Round(s.rng.Uniform(t.Confidence[0], t.Confidence[1]), 2)
	return Pattern{
		ID:              t.ID,
		Name:            t.Name,
		Description:     strings.NewReplacer(replacements...).Replace(t.Description),
		Confidence:      confidence,
		ConfidenceLabel: confidenceLabel(confidence),
		DetectedAt:      s.now().UTC(),
		Applied:         s.rng.Float64() < 0.7,
	}
}

// Patterns returns the load patterns detected in recent data.
func (s *Service) Patterns() []Pattern {
	templates := s.catalog.PatternTemplates
	perm := s.rng.Perm(len(templates))
	n := min(detectedPatterns, len(templates))
	return lo.Map(perm[:n], func(i int, _ int) Pattern {
		return s.pattern(templates[i])
	})
}

type PatternLibrary struct {
	CurrentPatterns    []Pattern           `json:"current_patterns"`
	HistoricalPatterns []HistoricalPattern `json:"historical_patterns"`
	TotalPatterns      int                 `json:"total_patterns"`
	LibraryStats       LibraryStats        `json:"library_stats"`
}

func (s *Service) PatternLibrary() PatternLibrary {
	current := s.Patterns()
	historical := append([]HistoricalPattern(nil), s.catalog.HistoricalPatterns...)
	return PatternLibrary{
		CurrentPatterns:    current,
		HistoricalPatterns: historical,
		TotalPatterns:      len(current) + len(historical),
		LibraryStats:       s.catalog.LibraryStats,
	}
}

// Pattern returns any known pattern template with its trigger details.
func (s *Service) Pattern(id string) (Pattern, error) {
	t, ok := lo.Find(s.catalog.PatternTemplates, func(t patternTemplate) bool {
		return t.ID == id
	})
	if !ok {
		return Pattern{}, ErrPatternNotFound
	}
	p := s.pattern(t)
	details := s.catalog.PatternDetails
	p.Details = &details
	return p, nil
}
