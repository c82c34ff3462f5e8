package grid

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type ReserveLevel struct {
	RequiredMW  float64 `yaml:"required_mw" json:"required_mw"`
	AvailableMW float64 `yaml:"available_mw" json:"available_mw"`
	Status      string  `yaml:"status" json:"status"`
}

type RiskIndicator struct {
	RiskLevel  string   `yaml:"risk_level" json:"risk_level"`
	Confidence float64  `yaml:"confidence" json:"confidence"`
	Factors    []string `yaml:"factors" json:"factors,omitempty"`
}

type HistoricalPattern struct {
	ID              string    `yaml:"id" json:"id"`
	Name            string    `yaml:"name" json:"name"`
	Description     string    `yaml:"description" json:"description"`
	Confidence      float64   `yaml:"confidence" json:"confidence"`
	ConfidenceLabel string    `yaml:"confidence_label" json:"confidence_label"`
	TimesApplied    int       `yaml:"times_applied" json:"times_applied"`
	SuccessRate     float64   `yaml:"success_rate" json:"success_rate"`
	CreatedAt       time.Time `yaml:"created_at" json:"created_at"`
}

type LibraryStats struct {
	PatternsLearned int     `yaml:"patterns_learned" json:"patterns_learned"`
	AvgSuccessRate  float64 `yaml:"avg_success_rate" json:"avg_success_rate"`
	ErrorsPrevented int     `yaml:"errors_prevented" json:"errors_prevented"`
}

// PatternDetails explains when a pattern triggers and what it changed.
type PatternDetails struct {
	TriggerConditions  map[string]string `yaml:"trigger_conditions" json:"trigger_conditions"`
	LearnedAdjustments map[string]string `yaml:"learned_adjustments" json:"learned_adjustments"`
	ValidationMetrics  map[string]any    `yaml:"validation_metrics" json:"validation_metrics"`
}

// Strategy is an optimization strategy over load scenarios.
type Strategy struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Selected    bool   `yaml:"selected" json:"selected"`
}

type assetSpec struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	CapacityMW   float64 `yaml:"capacity_mw"`
	OutputMW     []int   `yaml:"output_mw"`
	Availability []int   `yaml:"availability"`
}

type patternTemplate struct {
	ID          string              `yaml:"id"`
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Choices     map[string][]string `yaml:"choices"`
	Magnitude   []float64           `yaml:"magnitude"`
	Minutes     []int               `yaml:"minutes"`
	Confidence  []float64           `yaml:"confidence"`
}

type catalog struct {
	RegionalLoad map[string]float64 `yaml:"regional_load"`
	Reserves     struct {
		MarginMW  float64      `yaml:"margin_mw"`
		Primary   ReserveLevel `yaml:"primary"`
		Secondary ReserveLevel `yaml:"secondary"`
		Tertiary  ReserveLevel `yaml:"tertiary"`
	} `yaml:"reserves"`
	Uncertainty struct {
		Solar   RiskIndicator `yaml:"solar"`
		Wind    RiskIndicator `yaml:"wind"`
		Overall RiskIndicator `yaml:"overall"`
	} `yaml:"uncertainty"`
	Optimization struct {
		Status                 string  `yaml:"status"`
		ObjectiveValue         float64 `yaml:"objective_value"`
		ExecutionTimeMS        int     `yaml:"execution_time_ms"`
		ConstraintsSatisfied   bool    `yaml:"constraints_satisfied"`
		RecommendationsPending int     `yaml:"recommendations_pending"`
	} `yaml:"optimization"`
	Assets             []assetSpec         `yaml:"assets"`
	PatternTemplates   []patternTemplate   `yaml:"pattern_templates"`
	HistoricalPatterns []HistoricalPattern `yaml:"historical_patterns"`
	LibraryStats       LibraryStats        `yaml:"library_stats"`
	PatternDetails     PatternDetails      `yaml:"pattern_details"`
	Strategies         []Strategy          `yaml:"strategies"`
}

func (c catalog) validate() error {
	for _, a := range c.Assets {
		if len(a.OutputMW) != 2 || len(a.Availability) != 2 {
			return fmt.Errorf("asset %s: output_mw and availability need two bounds", a.ID)
		}
	}
	for _, p := range c.PatternTemplates {
		if len(p.Confidence) != 2 {
			return fmt.Errorf("pattern %s: confidence needs two bounds", p.ID)
		}
		if p.Magnitude != nil && len(p.Magnitude) != 2 {
			return fmt.Errorf("pattern %s: magnitude needs two bounds", p.ID)
		}
		if p.Minutes != nil && len(p.Minutes) != 2 {
			return fmt.Errorf("pattern %s: minutes needs two bounds", p.ID)
		}
	}
	return nil
}

var defaultCatalog = func() catalog {
	var c catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		panic(fmt.Errorf("failed to parse grid catalog: %w", err))
	}
	if err := c.validate(); err != nil {
		panic(fmt.Errorf("invalid grid catalog: %w", err))
	}
	return c
}()
