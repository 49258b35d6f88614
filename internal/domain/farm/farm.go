package farm

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FarmType string

const (
	FarmTypeOpenField  FarmType = "open_field"
	FarmTypeGreenhouse FarmType = "greenhouse"
	FarmTypeHybrid     FarmType = "hybrid"
)

func (t FarmType) Valid() bool {
	switch t {
	case FarmTypeOpenField, FarmTypeGreenhouse, FarmTypeHybrid:
		return true
	}
	return false
}

type ZoneType string

const (
	ZoneTypeOpenField  ZoneType = "open_field"
	ZoneTypeGreenhouse ZoneType = "greenhouse"
)

func (t ZoneType) Valid() bool {
	return t == ZoneTypeOpenField || t == ZoneTypeGreenhouse
}

type VertexType string

const (
	VertexSensor            VertexType = "sensor"
	VertexValve             VertexType = "valve"
	VertexCropBed           VertexType = "crop_bed"
	VertexWeatherStation    VertexType = "weather_station"
	VertexCamera            VertexType = "camera"
	VertexLightFixture      VertexType = "light_fixture"
	VertexClimateController VertexType = "climate_controller"
)

func (t VertexType) Valid() bool {
	switch t {
	case VertexSensor, VertexValve, VertexCropBed, VertexWeatherStation,
		VertexCamera, VertexLightFixture, VertexClimateController:
		return true
	}
	return false
}

// GreenhouseOnly reports vertex types that cannot live in open field zones.
func (t VertexType) GreenhouseOnly() bool {
	switch t {
	case VertexCamera, VertexLightFixture, VertexClimateController:
		return true
	}
	return false
}

type Farm struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string         `gorm:"column:name;size:255;not null" json:"name"`
	FarmType       FarmType       `gorm:"column:farm_type;size:32;not null;index" json:"farm_type"`
	Timezone       string         `gorm:"column:timezone;size:64;not null;default:UTC" json:"timezone"`
	Latitude       *float64       `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude      *float64       `gorm:"column:longitude" json:"longitude,omitempty"`
	ModelOverrides datatypes.JSON `gorm:"column:model_overrides" json:"model_overrides,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Farm) TableName() string { return "farm" }

func (f *Farm) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

type Zone struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FarmID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"farm_id"`
	Name      string         `gorm:"column:name;size:255;not null" json:"name"`
	ZoneType  ZoneType       `gorm:"column:zone_type;size:32;not null" json:"zone_type"`
	AreaM2    float64        `gorm:"column:area_m2;not null" json:"area_m2"`
	SoilType  string         `gorm:"column:soil_type;size:100;not null;default:unknown" json:"soil_type"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Zone) TableName() string { return "zone" }

func (z *Zone) BeforeCreate(tx *gorm.DB) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	return nil
}

type Vertex struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FarmID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"farm_id"`
	ZoneID      *uuid.UUID     `gorm:"type:uuid;index" json:"zone_id"`
	VertexType  VertexType     `gorm:"column:vertex_type;size:32;not null;index" json:"vertex_type"`
	Config      datatypes.JSON `gorm:"column:config" json:"config,omitempty"`
	InstalledAt *time.Time     `gorm:"column:installed_at" json:"installed_at"`
	LastSeenAt  *time.Time     `gorm:"column:last_seen_at" json:"last_seen_at"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Vertex) TableName() string { return "vertex" }

func (v *Vertex) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type HyperEdge struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	FarmID    uuid.UUID                   `gorm:"type:uuid;not null;index" json:"farm_id"`
	Layer     Layer                       `gorm:"column:layer;size:32;not null;index" json:"layer"`
	VertexIDs datatypes.JSONSlice[string] `gorm:"column:vertex_ids" json:"vertex_ids"`
	Metadata  datatypes.JSON              `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time                   `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (HyperEdge) TableName() string { return "hyperedge" }

func (h *HyperEdge) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
