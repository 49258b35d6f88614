package services

import (
	"testing"

	"github.com/agrisense/agrisense-backend/internal/domain/farm"
)

func TestCrossLayerPairs(t *testing.T) {
	open := crossLayerPairs(farm.FarmTypeOpenField)
	// irrigation, lighting (from solar), npk, soil, weather
	if len(open) != 10 || open[0] != [2]string{"irrigation", "lighting"} || open[9] != [2]string{"soil", "weather"} {
		t.Fatalf("unexpected open field pairs %v", open)
	}
	hybrid := crossLayerPairs(farm.FarmTypeHybrid)
	if len(hybrid) != 15 {
		t.Fatalf("solar and lighting must collapse, got %d pairs", len(hybrid))
	}
}

func TestAlertZone(t *testing.T) {
	index := map[string]string{
		"5b0f8c38-34c1-4d8e-9a59-3c8d7a3e1f00": "0c4a9a6e-6c1f-4a35-8d1c-9f9c1f1e2a11",
		"7d1e2f3a-1111-4c2b-8d3e-4f5a6b7c8d9e": "",
	}
	cases := []struct {
		item map[string]any
		want string
	}{
		{map[string]any{"zone_id": "0C4A9A6E-6C1F-4A35-8D1C-9F9C1F1E2A11"}, "0c4a9a6e-6c1f-4a35-8d1c-9f9c1f1e2a11"},
		{map[string]any{"zone_id": "not-a-uuid", "vertex_id": "5b0f8c38-34c1-4d8e-9a59-3c8d7a3e1f00"}, ""},
		{map[string]any{"vertex_id": "5b0f8c38-34c1-4d8e-9a59-3c8d7a3e1f00"}, "0c4a9a6e-6c1f-4a35-8d1c-9f9c1f1e2a11"},
		{map[string]any{"vertex_id": "7d1e2f3a-1111-4c2b-8d3e-4f5a6b7c8d9e"}, ""},
		{map[string]any{}, ""},
	}
	for i, tc := range cases {
		if got := alertZone(tc.item, index); got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
	}
}

func TestFirstString(t *testing.T) {
	item := map[string]any{"severity": "", "urgency": "high"}
	if got := firstString(item, "warning", "severity", "urgency"); got != "high" {
		t.Fatalf("got %q", got)
	}
	if got := firstString(map[string]any{}, "info", "urgency"); got != "info" {
		t.Fatalf("got %q", got)
	}
}
