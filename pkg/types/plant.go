package types

import (
	"fmt"
	"strings"
	"time"
)

// PlantType is the generation technology of a plant.
type PlantType string

const (
	PlantTypeSolar   PlantType = "solar"
	PlantTypeHydro   PlantType = "hydro"
	PlantTypeNuclear PlantType = "nuclear"
	PlantTypeWind    PlantType = "wind"
	PlantTypeThermal PlantType = "thermal"
)

// PlantTypes lists every supported plant type.
var PlantTypes = []PlantType{PlantTypeSolar, PlantTypeHydro, PlantTypeNuclear, PlantTypeWind, PlantTypeThermal}

func (t PlantType) Valid() bool {
	for _, v := range PlantTypes {
		if v == t {
			return true
		}
	}
	return false
}

// PlantStatus is the operational state of a plant.
type PlantStatus string

const (
	PlantStatusOnline      PlantStatus = "online"
	PlantStatusOffline     PlantStatus = "offline"
	PlantStatusMaintenance PlantStatus = "maintenance"
)

func (s PlantStatus) Valid() bool {
	switch s {
	case PlantStatusOnline, PlantStatusOffline, PlantStatusMaintenance:
		return true
	}
	return false
}

// Plant is a power plant owned by a user.
type Plant struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	Type            PlantType      `json:"type"`
	CapacityMW      float64        `json:"capacity_mw"`
	CurrentOutputMW float64        `json:"current_output_mw"`
	Status          PlantStatus    `json:"status"`
	Location        *string        `json:"location"`
	EfficiencyPct   *float64       `json:"efficiency_pct"`
	Metadata        map[string]any `json:"metadata"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ValidationError reports a single invalid request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

const maxPlantNameLen = 255

func validateName(name string) error {
	n := len(strings.TrimSpace(name))
	if n == 0 || len(name) > maxPlantNameLen {
		return invalid("name", "must be between 1 and %d characters", maxPlantNameLen)
	}
	return nil
}

func validateEfficiency(pct *float64) error {
	if pct != nil && (*pct < 0 || *pct > 100) {
		return invalid("efficiency_pct", "must be between 0 and 100")
	}
	return nil
}

// PlantCreate is the body of a create plant request.
type PlantCreate struct {
	Name            string         `json:"name"`
	Type            PlantType      `json:"type"`
	CapacityMW      float64        `json:"capacity_mw"`
	CurrentOutputMW float64        `json:"current_output_mw"`
	Status          PlantStatus    `json:"status"`
	Location        *string        `json:"location"`
	EfficiencyPct   *float64       `json:"efficiency_pct"`
	Metadata        map[string]any `json:"metadata"`
}

// Validate checks the request and fills the default status.
func (c *PlantCreate) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if !c.Type.Valid() {
		return invalid("type", "unknown plant type %q", c.Type)
	}
	if c.CapacityMW <= 0 {
		return invalid("capacity_mw", "must be greater than 0")
	}
	if c.CurrentOutputMW < 0 {
		return invalid("current_output_mw", "must not be negative")
	}
	if c.Status == "" {
		c.Status = PlantStatusOnline
	}
	if !c.Status.Valid() {
		return invalid("status", "unknown plant status %q", c.Status)
	}
	return validateEfficiency(c.EfficiencyPct)
}

// Plant builds the stored record for the request.
func (c PlantCreate) Plant(id, userID string, now time.Time) Plant {
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Plant{
		ID:              id,
		UserID:          userID,
		Name:            c.Name,
		Type:            c.Type,
		CapacityMW:      c.CapacityMW,
		CurrentOutputMW: c.CurrentOutputMW,
		Status:          c.Status,
		Location:        c.Location,
		EfficiencyPct:   c.EfficiencyPct,
		Metadata:        metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// PlantUpdate is a partial update. Nil fields are left unchanged.
type PlantUpdate struct {
	Name            *string        `json:"name"`
	Type            *PlantType     `json:"type"`
	CapacityMW      *float64       `json:"capacity_mw"`
	CurrentOutputMW *float64       `json:"current_output_mw"`
	Status          *PlantStatus   `json:"status"`
	Location        *string        `json:"location"`
	EfficiencyPct   *float64       `json:"efficiency_pct"`
	Metadata        map[string]any `json:"metadata"`
}

func (u PlantUpdate) IsEmpty() bool {
	return u.Name == nil && u.Type == nil && u.CapacityMW == nil && u.CurrentOutputMW == nil &&
		u.Status == nil && u.Location == nil && u.EfficiencyPct == nil && u.Metadata == nil
}

func (u PlantUpdate) Validate() error {
	if u.Name != nil {
		if err := validateName(*u.Name); err != nil {
			return err
		}
	}
	if u.Type != nil && !u.Type.Valid() {
		return invalid("type", "unknown plant type %q", *u.Type)
	}
	if u.CapacityMW != nil && *u.CapacityMW <= 0 {
		return invalid("capacity_mw", "must be greater than 0")
	}
	if u.CurrentOutputMW != nil && *u.CurrentOutputMW < 0 {
		return invalid("current_output_mw", "must not be negative")
	}
	if u.Status != nil && !u.Status.Valid() {
		return invalid("status", "unknown plant status %q", *u.Status)
	}
	return validateEfficiency(u.EfficiencyPct)
}

// Apply copies the set fields onto p.
func (u PlantUpdate) Apply(p *Plant, now time.Time) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Type != nil {
		p.Type = *u.Type
	}
	if u.CapacityMW != nil {
		p.CapacityMW = *u.CapacityMW
	}
	if u.CurrentOutputMW != nil {
		p.CurrentOutputMW = *u.CurrentOutputMW
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.Location != nil {
		p.Location = u.Location
	}
	if u.EfficiencyPct != nil {
		p.EfficiencyPct = u.EfficiencyPct
	}
	if u.Metadata != nil {
		p.Metadata = u.Metadata
	}
	p.UpdatedAt = now
}

// PlantForecastPoint is one 15 minute step of a stored plant forecast.
type PlantForecastPoint struct {
	PlantID           string    `json:"plant_id"`
	Timestamp         time.Time `json:"timestamp"`
	PredictedOutputMW float64   `json:"predicted_output_mw"`
	LowerBoundMW      float64   `json:"lower_bound_mw"`
	UpperBoundMW      float64   `json:"upper_bound_mw"`
	Confidence        float64   `json:"confidence"`
	Temperature       float64   `json:"temperature"`
	Humidity          float64   `json:"humidity"`
	WindSpeed         float64   `json:"wind_speed"`
	CloudCover        float64   `json:"cloud_cover"`
}

// PlantMetrics is the response of the plant metrics endpoint.
type PlantMetrics struct {
	PlantID         string              `json:"plant_id"`
	Name            string              `json:"name"`
	Type            PlantType           `json:"type"`
	CurrentOutputMW float64             `json:"current_output_mw"`
	CapacityMW      float64             `json:"capacity_mw"`
	UtilizationPct  float64             `json:"utilization_pct"`
	EfficiencyPct   *float64            `json:"efficiency_pct"`
	Status          PlantStatus         `json:"status"`
	LatestMetrics   *PlantForecastPoint `json:"latest_metrics"`
}
