package farm

import "strings"

type Layer string

const (
	LayerSoil             Layer = "soil"
	LayerIrrigation       Layer = "irrigation"
	LayerLighting         Layer = "lighting"
	LayerSolar            Layer = "solar"
	LayerWeather          Layer = "weather"
	LayerCropRequirements Layer = "crop_requirements"
	LayerNPK              Layer = "npk"
	LayerVision           Layer = "vision"
)

// ValidEdgeLayer reports whether l can label a hyperedge. solar is an
// active-layer token only.
func (l Layer) ValidEdgeLayer() bool {
	switch l {
	case LayerSoil, LayerIrrigation, LayerLighting, LayerWeather,
		LayerCropRequirements, LayerNPK, LayerVision:
		return true
	}
	return false
}

var openFieldLayers = []Layer{
	LayerSoil, LayerIrrigation, LayerSolar, LayerWeather, LayerCropRequirements, LayerNPK,
}

var greenhouseLayers = []Layer{
	LayerSoil, LayerIrrigation, LayerLighting, LayerWeather, LayerCropRequirements, LayerNPK, LayerVision,
}

var hybridLayers = []Layer{
	LayerSoil, LayerIrrigation, LayerLighting, LayerSolar, LayerWeather, LayerCropRequirements, LayerNPK, LayerVision,
}

// ActiveLayers returns a fresh copy of the layer tokens enabled for ft.
func ActiveLayers(ft FarmType) []Layer {
	var src []Layer
	switch ft {
	case FarmTypeOpenField:
		src = openFieldLayers
	case FarmTypeGreenhouse:
		src = greenhouseLayers
	case FarmTypeHybrid:
		src = hybridLayers
	default:
		return nil
	}
	out := make([]Layer, len(src))
	copy(out, src)
	return out
}

// NormalizeLayer folds aliases onto their ingestion layer.
func NormalizeLayer(raw string) Layer {
	l := Layer(strings.ToLower(strings.TrimSpace(raw)))
	if l == LayerSolar {
		return LayerLighting
	}
	return l
}

// LayerActive reports whether any of the accepted tokens is active for ft.
func LayerActive(ft FarmType, accepted ...Layer) bool {
	for _, active := range ActiveLayers(ft) {
		for _, a := range accepted {
			if active == a {
				return true
			}
		}
	}
	return false
}

func LayerStrings(layers []Layer) []string {
	out := make([]string, len(layers))
	for i, l := range layers {
		out[i] = string(l)
	}
	return out
}

// ModelDefaults are the engine models enabled unless a farm overrides them.
func ModelDefaults() map[string]bool {
	return map[string]bool{
		"irrigation":        true,
		"nutrients":         true,
		"yield_forecast":    true,
		"anomaly_detection": true,
	}
}
