package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/pkg/pointers"
)

// resolution is what one record contributes after its references check out.
type resolution struct {
	zoneID   *uuid.UUID
	vertexID *uuid.UUID // graph update target; nil skips the update
	row      any
	times    []time.Time
	warnings []string
}

// descriptor parameterizes the shared pipeline for one layer.
type descriptor struct {
	layer farm.Layer
	// accepted are the active-layer tokens that enable this layer.
	accepted []farm.Layer
	decode   func(json.RawMessage) ([]Record, error)
	resolve  func(r *resolver, rec Record) (*resolution, error)
	features func(rec Record) []float64
	// rows converts resolved rows into the typed slice handed to Create.
	rows func([]any) any
}

var descriptors = map[farm.Layer]*descriptor{
	farm.LayerSoil:       soilDescriptor,
	farm.LayerWeather:    weatherDescriptor,
	farm.LayerIrrigation: irrigationDescriptor,
	farm.LayerNPK:        npkDescriptor,
	farm.LayerVision:     visionDescriptor,
	farm.LayerLighting:   lightingDescriptor,
}

func descriptorFor(layer farm.Layer) (*descriptor, error) {
	d, ok := descriptors[farm.NormalizeLayer(string(layer))]
	if !ok {
		return nil, apperr.Invalid("unsupported layer token: %s", layer)
	}
	return d, nil
}

// DecodeRecords parses a JSON array of layer records.
func DecodeRecords(layer farm.Layer, raw json.RawMessage) ([]Record, error) {
	d, err := descriptorFor(layer)
	if err != nil {
		return nil, err
	}
	recs, err := d.decode(raw)
	if err != nil {
		return nil, apperr.Invalid("invalid %s records: %v", d.layer, err)
	}
	return recs, nil
}

func typedRows[T any](in []any) any {
	out := make([]*T, len(in))
	for i := range in {
		out[i] = in[i].(*T)
	}
	return out
}

func recordID(row any) int64 {
	switch r := row.(type) {
	case *types.SoilReading:
		return r.ID
	case *types.WeatherReading:
		return r.ID
	case *types.IrrigationEvent:
		return r.ID
	case *types.NpkSample:
		return r.ID
	case *types.VisionEvent:
		return r.ID
	case *types.LightingReading:
		return r.ID
	}
	return 0
}

func requireTimestamp(field string, ts time.Time) error {
	if ts.IsZero() {
		return apperr.Invalid("%s is required", field)
	}
	return nil
}

func jsonOrNil(m map[string]any) datatypes.JSON {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

var soilDescriptor = &descriptor{
	layer:    farm.LayerSoil,
	accepted: []farm.Layer{farm.LayerSoil},
	decode:   decodeAs[SoilReadingIn],
	resolve: func(r *resolver, rec Record) (*resolution, error) {
		in := rec.(SoilReadingIn)
		if err := requireTimestamp("timestamp", in.Timestamp); err != nil {
			return nil, err
		}
		v, err := r.vertex(in.SensorID, farm.VertexSensor)
		if err != nil {
			return nil, err
		}
		var warnings []string
		if st, ok := configString(v.Config, "sensor_type"); ok && st != "soil" {
			warnings = append(warnings, "sensor_type mismatch for soil endpoint")
		}
		return &resolution{
			zoneID:   v.ZoneID,
			vertexID: &v.ID,
			times:    []time.Time{in.Timestamp},
			warnings: warnings,
			row: &types.SoilReading{
				SensorID:     in.SensorID,
				Timestamp:    in.Timestamp,
				Moisture:     in.Moisture,
				Temperature:  in.Temperature,
				Conductivity: in.Conductivity,
				PH:           in.PH,
			},
		}, nil
	},
	features: func(rec Record) []float64 {
		in := rec.(SoilReadingIn)
		return []float64{in.Moisture, in.Temperature, pointers.ValueOr(in.Conductivity, 0), pointers.ValueOr(in.PH, 0)}
	},
	rows: typedRows[types.SoilReading],
}

var weatherDescriptor = &descriptor{
	layer:    farm.LayerWeather,
	accepted: []farm.Layer{farm.LayerWeather},
	decode:   decodeAs[WeatherReadingIn],
	resolve: func(r *resolver, rec Record) (*resolution, error) {
		in := rec.(WeatherReadingIn)
		if err := requireTimestamp("timestamp", in.Timestamp); err != nil {
			return nil, err
		}
		v, err := r.vertex(in.StationID, farm.VertexWeatherStation)
		if err != nil {
			return nil, err
		}
		return &resolution{
			zoneID:   v.ZoneID,
			vertexID: &v.ID,
			times:    []time.Time{in.Timestamp},
			row: &types.WeatherReading{
				StationID:       in.StationID,
				Timestamp:       in.Timestamp,
				Temperature:     in.Temperature,
				Humidity:        in.Humidity,
				PrecipitationMM: in.PrecipitationMM,
				WindSpeed:       in.WindSpeed,
				WindDirection:   in.WindDirection,
				PressureHPA:     in.PressureHPA,
				ET0:             in.ET0,
			},
		}, nil
	},
	features: func(rec Record) []float64 {
		in := rec.(WeatherReadingIn)
		return []float64{in.Temperature, in.Humidity, in.PrecipitationMM, pointers.ValueOr(in.WindSpeed, 0), pointers.ValueOr(in.ET0, 0)}
	},
	rows: typedRows[types.WeatherReading],
}

var irrigationDescriptor = &descriptor{
	layer:    farm.LayerIrrigation,
	accepted: []farm.Layer{farm.LayerIrrigation},
	decode:   decodeAs[IrrigationEventIn],
	resolve: func(r *resolver, rec Record) (*resolution, error) {
		in := rec.(IrrigationEventIn)
		if err := requireTimestamp("timestamp_start", in.TimestampStart); err != nil {
			return nil, err
		}
		if !in.Trigger.Valid() {
			return nil, apperr.Invalid("invalid trigger %q", in.Trigger)
		}
		v, err := r.vertex(in.ValveID, farm.VertexValve)
		if err != nil {
			return nil, err
		}
		times := []time.Time{in.TimestampStart}
		if in.TimestampEnd != nil {
			times = append(times, *in.TimestampEnd)
		}
		return &resolution{
			zoneID:   v.ZoneID,
			vertexID: &v.ID,
			times:    times,
			row: &types.IrrigationEvent{
				ValveID:        in.ValveID,
				TimestampStart: in.TimestampStart,
				TimestampEnd:   in.TimestampEnd,
				VolumeLiters:   in.VolumeLiters,
				Trigger:        in.Trigger,
			},
		}, nil
	},
	features: func(rec Record) []float64 {
		in := rec.(IrrigationEventIn)
		return irrigationFeatures(in.TimestampStart, in.TimestampEnd, in.VolumeLiters)
	},
	rows: typedRows[types.IrrigationEvent],
}

// irrigationFeatures is [flow_rate, 0, valve_state]. A zero-length event
// counts its whole volume as the rate; an event without an end is open.
func irrigationFeatures(start time.Time, end *time.Time, volume *float64) []float64 {
	vol := pointers.ValueOr(volume, 0)
	durationMin := 0.0
	if end != nil {
		durationMin = math.Max(0, end.Sub(start).Seconds()/60.0)
	}
	flow := vol
	if durationMin > 0 {
		flow = vol / durationMin
	}
	valveState := 0.0
	if end == nil {
		valveState = 1
	}
	return []float64{flow, 0, valveState}
}

var npkDescriptor = &descriptor{
	layer:    farm.LayerNPK,
	accepted: []farm.Layer{farm.LayerNPK},
	decode:   decodeAs[NpkSampleIn],
	resolve: func(r *resolver, rec Record) (*resolution, error) {
		in := rec.(NpkSampleIn)
		if err := requireTimestamp("timestamp", in.Timestamp); err != nil {
			return nil, err
		}
		if !in.Source.Valid() {
			return nil, apperr.Invalid("invalid source %q", in.Source)
		}
		z, err := r.zone(in.ZoneID)
		if err != nil {
			return nil, err
		}
		res := &resolution{
			zoneID: &z.ID,
			times:  []time.Time{in.Timestamp},
			row: &types.NpkSample{
				ZoneID:           in.ZoneID,
				Timestamp:        in.Timestamp,
				NitrogenMgKg:     in.NitrogenMgKg,
				PhosphorusMgKg:   in.PhosphorusMgKg,
				PotassiumMgKg:    in.PotassiumMgKg,
				OrganicMatterPct: in.OrganicMatterPct,
				Source:           in.Source,
			},
		}
		sensor, err := r.zoneSensor(z.ID)
		if err != nil {
			return nil, err
		}
		if sensor == nil {
			res.warnings = append(res.warnings, "no sensor vertex found in zone for npk graph update")
		} else {
			res.vertexID = &sensor.ID
		}
		return res, nil
	},
	features: func(rec Record) []float64 {
		in := rec.(NpkSampleIn)
		return []float64{in.NitrogenMgKg, in.PhosphorusMgKg, in.PotassiumMgKg}
	},
	rows: typedRows[types.NpkSample],
}

var visionDescriptor = &descriptor{
	layer:    farm.LayerVision,
	accepted: []farm.Layer{farm.LayerVision},
	decode:   decodeAs[VisionEventIn],
	resolve: func(r *resolver, rec Record) (*resolution, error) {
		in := rec.(VisionEventIn)
		if err := requireTimestamp("timestamp", in.Timestamp); err != nil {
			return nil, err
		}
		if !in.AnomalyType.Valid() {
			return nil, apperr.Invalid("invalid anomaly_type %q", in.AnomalyType)
		}
		if in.Confidence < 0 || in.Confidence > 1 {
			return nil, apperr.Invalid("confidence must be within [0, 1]")
		}
		camera, err := r.vertex(in.CameraID, farm.VertexCamera)
		if err != nil {
			return nil, err
		}
		bed, err := r.vertex(in.CropBedID, farm.VertexCropBed)
		if err != nil {
			return nil, err
		}
		return &resolution{
			zoneID:   bed.ZoneID,
			vertexID: &camera.ID,
			times:    []time.Time{in.Timestamp},
			row: &types.VisionEvent{
				CameraID:          in.CameraID,
				CropBedID:         in.CropBedID,
				Timestamp:         in.Timestamp,
				AnomalyType:       in.AnomalyType,
				Confidence:        in.Confidence,
				CanopyCoveragePct: in.CanopyCoveragePct,
				Metadata:          jsonOrNil(in.Metadata),
			},
		}, nil
	},
	features: func(rec Record) []float64 {
		in := rec.(VisionEventIn)
		score := 0.0
		if in.AnomalyType != "none" {
			score = in.Confidence
		}
		return []float64{pointers.ValueOr(in.CanopyCoveragePct, 0), 0, score, 0}
	},
	rows: typedRows[types.VisionEvent],
}

var lightingDescriptor = &descriptor{
	layer:    farm.LayerLighting,
	accepted: []farm.Layer{farm.LayerLighting, farm.LayerSolar},
	decode:   decodeAs[LightingReadingIn],
	resolve: func(r *resolver, rec Record) (*resolution, error) {
		in := rec.(LightingReadingIn)
		if err := requireTimestamp("timestamp", in.Timestamp); err != nil {
			return nil, err
		}
		var warnings []string
		if in.LayerToken != "" {
			token := farm.NormalizeLayer(in.LayerToken)
			if !ingestLayer(token) {
				return nil, apperr.Invalid("unsupported layer token: %s", in.LayerToken)
			}
			if token != farm.LayerLighting {
				warnings = append(warnings, "lighting payload received unsupported layer alias")
			}
		}
		v, err := r.vertex(in.FixtureID, farm.VertexLightFixture)
		if err != nil {
			return nil, err
		}
		return &resolution{
			zoneID:   v.ZoneID,
			vertexID: &v.ID,
			times:    []time.Time{in.Timestamp},
			warnings: warnings,
			row: &types.LightingReading{
				FixtureID:       in.FixtureID,
				Timestamp:       in.Timestamp,
				ParUmol:         in.ParUmol,
				DliCumulative:   in.DliCumulative,
				DutyCyclePct:    in.DutyCyclePct,
				SpectrumProfile: jsonOrNil(in.SpectrumProfile),
			},
		}, nil
	},
	features: func(rec Record) []float64 {
		in := rec.(LightingReadingIn)
		return []float64{in.ParUmol, in.DliCumulative, 0}
	},
	rows: typedRows[types.LightingReading],
}

func ingestLayer(l farm.Layer) bool {
	switch l {
	case farm.LayerSoil, farm.LayerWeather, farm.LayerIrrigation, farm.LayerNPK, farm.LayerVision, farm.LayerLighting:
		return true
	}
	return false
}

func configString(raw datatypes.JSON, key string) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return "", false
	}
	v, ok := cfg[key]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}
