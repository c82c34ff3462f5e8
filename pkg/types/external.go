package types

import "time"

// Weather is a current or forecast weather observation.
type Weather struct {
	Timestamp     time.Time `json:"timestamp"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	CloudCover    float64   `json:"cloud_cover"`
	Pressure      float64   `json:"pressure"`
	Irradiance    float64   `json:"irradiance"`
	Precipitation float64   `json:"precipitation"`
	Source        string    `json:"source"`
}

// GridPrice is an hourly day-ahead price.
type GridPrice struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Area      string    `json:"area"`
}

// GridLoad is a snapshot of the load of a bidding area.
type GridLoad struct {
	Timestamp      time.Time `json:"timestamp"`
	Area           string    `json:"area"`
	CurrentLoadMW  float64   `json:"current_load_mw"`
	CapacityMW     float64   `json:"capacity_mw"`
	UtilizationPct float64   `json:"utilization_pct"`
	RenewablePct   float64   `json:"renewable_pct"`
	ImportExportMW float64   `json:"import_export_mw"`
}
