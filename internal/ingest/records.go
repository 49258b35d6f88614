package ingest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/domain/telemetry"
)

// Record is one incoming telemetry item of a single layer.
type Record interface {
	Layer() farm.Layer
}

type SoilReadingIn struct {
	SensorID     uuid.UUID `json:"sensor_id"`
	Timestamp    time.Time `json:"timestamp"`
	Moisture     float64   `json:"moisture"`
	Temperature  float64   `json:"temperature"`
	Conductivity *float64  `json:"conductivity"`
	PH           *float64  `json:"ph"`
}

type WeatherReadingIn struct {
	StationID       uuid.UUID `json:"station_id"`
	Timestamp       time.Time `json:"timestamp"`
	Temperature     float64   `json:"temperature"`
	Humidity        float64   `json:"humidity"`
	PrecipitationMM float64   `json:"precipitation_mm"`
	WindSpeed       *float64  `json:"wind_speed"`
	WindDirection   *float64  `json:"wind_direction"`
	PressureHPA     *float64  `json:"pressure_hpa"`
	ET0             *float64  `json:"et0"`
}

type IrrigationEventIn struct {
	ValveID        uuid.UUID                   `json:"valve_id"`
	TimestampStart time.Time                   `json:"timestamp_start"`
	TimestampEnd   *time.Time                  `json:"timestamp_end"`
	VolumeLiters   *float64                    `json:"volume_liters"`
	Trigger        telemetry.IrrigationTrigger `json:"trigger"`
}

type NpkSampleIn struct {
	ZoneID           uuid.UUID           `json:"zone_id"`
	Timestamp        time.Time           `json:"timestamp"`
	NitrogenMgKg     float64             `json:"nitrogen_mg_kg"`
	PhosphorusMgKg   float64             `json:"phosphorus_mg_kg"`
	PotassiumMgKg    float64             `json:"potassium_mg_kg"`
	OrganicMatterPct *float64            `json:"organic_matter_pct"`
	Source           telemetry.NpkSource `json:"source"`
}

type VisionEventIn struct {
	CameraID          uuid.UUID             `json:"camera_id"`
	CropBedID         uuid.UUID             `json:"crop_bed_id"`
	Timestamp         time.Time             `json:"timestamp"`
	AnomalyType       telemetry.AnomalyType `json:"anomaly_type"`
	Confidence        float64               `json:"confidence"`
	CanopyCoveragePct *float64              `json:"canopy_coverage_pct"`
	Metadata          map[string]any        `json:"metadata"`
}

type LightingReadingIn struct {
	FixtureID       uuid.UUID      `json:"fixture_id"`
	Timestamp       time.Time      `json:"timestamp"`
	ParUmol         float64        `json:"par_umol"`
	DliCumulative   float64        `json:"dli_cumulative"`
	DutyCyclePct    float64        `json:"duty_cycle_pct"`
	SpectrumProfile map[string]any `json:"spectrum_profile"`
	// LayerToken is the sender's layer alias; empty means lighting.
	LayerToken string `json:"layer,omitempty"`
}

func (SoilReadingIn) Layer() farm.Layer     { return farm.LayerSoil }
func (WeatherReadingIn) Layer() farm.Layer  { return farm.LayerWeather }
func (IrrigationEventIn) Layer() farm.Layer { return farm.LayerIrrigation }
func (NpkSampleIn) Layer() farm.Layer       { return farm.LayerNPK }
func (VisionEventIn) Layer() farm.Layer     { return farm.LayerVision }
func (LightingReadingIn) Layer() farm.Layer { return farm.LayerLighting }

// BulkRequest carries records of several layers for one farm.
type BulkRequest struct {
	Soil       []SoilReadingIn     `json:"soil"`
	Weather    []WeatherReadingIn  `json:"weather"`
	Irrigation []IrrigationEventIn `json:"irrigation"`
	Npk        []NpkSampleIn       `json:"npk"`
	Vision     []VisionEventIn     `json:"vision"`
	Lighting   []LightingReadingIn `json:"lighting"`
}

func records[T Record](in []T) []Record {
	out := make([]Record, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}

// layers returns the non-empty layers in ingestion order.
func (b BulkRequest) layers() []layerBatch {
	all := []layerBatch{
		{farm.LayerSoil, records(b.Soil)},
		{farm.LayerWeather, records(b.Weather)},
		{farm.LayerIrrigation, records(b.Irrigation)},
		{farm.LayerNPK, records(b.Npk)},
		{farm.LayerVision, records(b.Vision)},
		{farm.LayerLighting, records(b.Lighting)},
	}
	out := all[:0]
	for _, lb := range all {
		if len(lb.records) > 0 {
			out = append(out, lb)
		}
	}
	return out
}

type layerBatch struct {
	layer   farm.Layer
	records []Record
}

func decodeAs[T Record](raw json.RawMessage) ([]Record, error) {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return records(items), nil
}

// Warning is a non-fatal note attached to the record at Index.
type Warning struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

type Receipt struct {
	FarmID         uuid.UUID  `json:"farm_id"`
	Layer          string     `json:"layer"`
	Status         string     `json:"status"`
	InsertedCount  int        `json:"inserted_count"`
	FailedCount    int        `json:"failed_count"`
	EventIDs       []int64    `json:"event_ids"`
	TimestampStart *time.Time `json:"timestamp_start"`
	TimestampEnd   *time.Time `json:"timestamp_end"`
	Warnings       []Warning  `json:"warnings"`
}

type BulkReceipt struct {
	FarmID         uuid.UUID           `json:"farm_id"`
	Status         string              `json:"status"`
	InsertedCount  int                 `json:"inserted_count"`
	FailedCount    int                 `json:"failed_count"`
	TimestampStart *time.Time          `json:"timestamp_start"`
	TimestampEnd   *time.Time          `json:"timestamp_end"`
	Warnings       []Warning           `json:"warnings"`
	Layers         map[string]*Receipt `json:"layers"`
}

// window tracks the min/max event time seen.
type window struct {
	start, end *time.Time
}

func (w *window) add(ts time.Time) {
	if ts.IsZero() {
		return
	}
	t := ts
	if w.start == nil || t.Before(*w.start) {
		s := t
		w.start = &s
	}
	if w.end == nil || t.After(*w.end) {
		e := t
		w.end = &e
	}
}

func (w *window) merge(start, end *time.Time) {
	if start != nil {
		w.add(*start)
	}
	if end != nil {
		w.add(*end)
	}
}
