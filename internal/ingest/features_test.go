package ingest

import (
	"reflect"
	"testing"
	"time"

	"github.com/agrisense/agrisense-backend/internal/domain/telemetry"
	"github.com/agrisense/agrisense-backend/internal/pkg/pointers"
)

func TestIrrigationFeatures(t *testing.T) {
	start := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	same := start

	cases := []struct {
		name   string
		end    *time.Time
		volume *float64
		want   []float64
	}{
		{"open", nil, pointers.Float64(90), []float64{90, 0, 1}},
		{"closed", &end, pointers.Float64(90), []float64{3, 0, 0}},
		{"instantaneous", &same, pointers.Float64(15), []float64{15, 0, 0}},
		{"no volume", &end, nil, []float64{0, 0, 0}},
	}
	for _, tc := range cases {
		if got := irrigationFeatures(start, tc.end, tc.volume); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestLayerFeatureVectors(t *testing.T) {
	soil := soilDescriptor.features(SoilReadingIn{Moisture: 0.3, Temperature: 20, PH: pointers.Float64(6.5)})
	if !reflect.DeepEqual(soil, []float64{0.3, 20, 0, 6.5}) {
		t.Fatalf("soil: %v", soil)
	}
	weather := weatherDescriptor.features(WeatherReadingIn{Temperature: 18, Humidity: 70, PrecipitationMM: 2, ET0: pointers.Float64(3.1)})
	if !reflect.DeepEqual(weather, []float64{18, 70, 2, 0, 3.1}) {
		t.Fatalf("weather: %v", weather)
	}
	healthy := visionDescriptor.features(VisionEventIn{AnomalyType: telemetry.AnomalyNone, Confidence: 0.9, CanopyCoveragePct: pointers.Float64(55)})
	if !reflect.DeepEqual(healthy, []float64{55, 0, 0, 0}) {
		t.Fatalf("vision none: %v", healthy)
	}
	pest := visionDescriptor.features(VisionEventIn{AnomalyType: telemetry.AnomalyPest, Confidence: 0.8})
	if !reflect.DeepEqual(pest, []float64{0, 0, 0.8, 0}) {
		t.Fatalf("vision pest: %v", pest)
	}
	light := lightingDescriptor.features(LightingReadingIn{ParUmol: 400, DliCumulative: 14})
	if !reflect.DeepEqual(light, []float64{400, 14, 0}) {
		t.Fatalf("lighting: %v", light)
	}
	npk := npkDescriptor.features(NpkSampleIn{NitrogenMgKg: 1, PhosphorusMgKg: 2, PotassiumMgKg: 3})
	if !reflect.DeepEqual(npk, []float64{1, 2, 3}) {
		t.Fatalf("npk: %v", npk)
	}
}
