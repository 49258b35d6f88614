package telemetry

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type IrrigationTrigger string

const (
	TriggerManual    IrrigationTrigger = "manual"
	TriggerScheduled IrrigationTrigger = "scheduled"
	TriggerAuto      IrrigationTrigger = "auto"
	TriggerEmergency IrrigationTrigger = "emergency"
)

func (t IrrigationTrigger) Valid() bool {
	switch t {
	case TriggerManual, TriggerScheduled, TriggerAuto, TriggerEmergency:
		return true
	}
	return false
}

type NpkSource string

const (
	NpkSourceLab          NpkSource = "lab"
	NpkSourceInlineSensor NpkSource = "inline_sensor"
)

func (s NpkSource) Valid() bool {
	return s == NpkSourceLab || s == NpkSourceInlineSensor
}

type AnomalyType string

const (
	AnomalyNone               AnomalyType = "none"
	AnomalyPest               AnomalyType = "pest"
	AnomalyDisease            AnomalyType = "disease"
	AnomalyNutrientDeficiency AnomalyType = "nutrient_deficiency"
	AnomalyWilting            AnomalyType = "wilting"
	AnomalyOther              AnomalyType = "other"
)

func (a AnomalyType) Valid() bool {
	switch a {
	case AnomalyNone, AnomalyPest, AnomalyDisease, AnomalyNutrientDeficiency, AnomalyWilting, AnomalyOther:
		return true
	}
	return false
}

// Time series rows are append-only. The int64 id is assigned on flush and
// ingested_at tracks ingestion lag separately from the event time.

type SoilReading struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SensorID     uuid.UUID `gorm:"type:uuid;not null" json:"sensor_id"`
	Timestamp    time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
	Moisture     float64   `gorm:"column:moisture;not null" json:"moisture"`
	Temperature  float64   `gorm:"column:temperature;not null" json:"temperature"`
	Conductivity *float64  `gorm:"column:conductivity" json:"conductivity,omitempty"`
	PH           *float64  `gorm:"column:ph" json:"ph,omitempty"`
	IngestedAt   time.Time `gorm:"column:ingested_at;not null;autoCreateTime" json:"ingested_at"`
}

func (SoilReading) TableName() string { return "soil_reading" }

type WeatherReading struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StationID       uuid.UUID `gorm:"type:uuid;not null" json:"station_id"`
	Timestamp       time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
	Temperature     float64   `gorm:"column:temperature;not null" json:"temperature"`
	Humidity        float64   `gorm:"column:humidity;not null" json:"humidity"`
	PrecipitationMM float64   `gorm:"column:precipitation_mm;not null" json:"precipitation_mm"`
	WindSpeed       *float64  `gorm:"column:wind_speed" json:"wind_speed,omitempty"`
	WindDirection   *float64  `gorm:"column:wind_direction" json:"wind_direction,omitempty"`
	PressureHPA     *float64  `gorm:"column:pressure_hpa" json:"pressure_hpa,omitempty"`
	ET0             *float64  `gorm:"column:et0" json:"et0,omitempty"`
	IngestedAt      time.Time `gorm:"column:ingested_at;not null;autoCreateTime" json:"ingested_at"`
}

func (WeatherReading) TableName() string { return "weather_reading" }

type IrrigationEvent struct {
	ID             int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ValveID        uuid.UUID         `gorm:"type:uuid;not null" json:"valve_id"`
	TimestampStart time.Time         `gorm:"column:timestamp_start;not null" json:"timestamp_start"`
	TimestampEnd   *time.Time        `gorm:"column:timestamp_end" json:"timestamp_end,omitempty"`
	VolumeLiters   *float64          `gorm:"column:volume_liters" json:"volume_liters,omitempty"`
	Trigger        IrrigationTrigger `gorm:"column:trigger;size:16;not null" json:"trigger"`
	IngestedAt     time.Time         `gorm:"column:ingested_at;not null;autoCreateTime" json:"ingested_at"`
}

func (IrrigationEvent) TableName() string { return "irrigation_event" }

type NpkSample struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ZoneID           uuid.UUID `gorm:"type:uuid;not null" json:"zone_id"`
	Timestamp        time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
	NitrogenMgKg     float64   `gorm:"column:nitrogen_mg_kg;not null" json:"nitrogen_mg_kg"`
	PhosphorusMgKg   float64   `gorm:"column:phosphorus_mg_kg;not null" json:"phosphorus_mg_kg"`
	PotassiumMgKg    float64   `gorm:"column:potassium_mg_kg;not null" json:"potassium_mg_kg"`
	OrganicMatterPct *float64  `gorm:"column:organic_matter_pct" json:"organic_matter_pct,omitempty"`
	Source           NpkSource `gorm:"column:source;size:16;not null" json:"source"`
	IngestedAt       time.Time `gorm:"column:ingested_at;not null;autoCreateTime" json:"ingested_at"`
}

func (NpkSample) TableName() string { return "npk_sample" }

type VisionEvent struct {
	ID                int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CameraID          uuid.UUID      `gorm:"type:uuid;not null" json:"camera_id"`
	CropBedID         uuid.UUID      `gorm:"type:uuid;not null" json:"crop_bed_id"`
	Timestamp         time.Time      `gorm:"column:timestamp;not null" json:"timestamp"`
	AnomalyType       AnomalyType    `gorm:"column:anomaly_type;size:32;not null" json:"anomaly_type"`
	Confidence        float64        `gorm:"column:confidence;not null" json:"confidence"`
	CanopyCoveragePct *float64       `gorm:"column:canopy_coverage_pct" json:"canopy_coverage_pct,omitempty"`
	Metadata          datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	IngestedAt        time.Time      `gorm:"column:ingested_at;not null;autoCreateTime" json:"ingested_at"`
}

func (VisionEvent) TableName() string { return "vision_event" }

type LightingReading struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	FixtureID       uuid.UUID      `gorm:"type:uuid;not null" json:"fixture_id"`
	Timestamp       time.Time      `gorm:"column:timestamp;not null" json:"timestamp"`
	ParUmol         float64        `gorm:"column:par_umol;not null" json:"par_umol"`
	DliCumulative   float64        `gorm:"column:dli_cumulative;not null" json:"dli_cumulative"`
	DutyCyclePct    float64        `gorm:"column:duty_cycle_pct;not null" json:"duty_cycle_pct"`
	SpectrumProfile datatypes.JSON `gorm:"column:spectrum_profile" json:"spectrum_profile,omitempty"`
	IngestedAt      time.Time      `gorm:"column:ingested_at;not null;autoCreateTime" json:"ingested_at"`
}

func (LightingReading) TableName() string { return "lighting_reading" }

// Index describes the (reference, time DESC) lookup index of one table.
type Index struct {
	Table     string
	Reference string
	TimeCol   string
}

func Indexes() []Index {
	return []Index{
		{Table: "soil_reading", Reference: "sensor_id", TimeCol: "timestamp"},
		{Table: "weather_reading", Reference: "station_id", TimeCol: "timestamp"},
		{Table: "irrigation_event", Reference: "valve_id", TimeCol: "timestamp_start"},
		{Table: "npk_sample", Reference: "zone_id", TimeCol: "timestamp"},
		{Table: "vision_event", Reference: "camera_id", TimeCol: "timestamp"},
		{Table: "vision_event", Reference: "crop_bed_id", TimeCol: "timestamp"},
		{Table: "lighting_reading", Reference: "fixture_id", TimeCol: "timestamp"},
	}
}
