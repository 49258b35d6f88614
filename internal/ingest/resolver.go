package ingest

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/agrisense/agrisense-backend/internal/data/repos"
	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
)

// resolver checks record references against one farm within one layer call.
// Lookups are memoized for the call.
type resolver struct {
	dbc    dbctx.Context
	repos  repos.Set
	farmID uuid.UUID

	vertices map[uuid.UUID]*types.Vertex
	zones    map[uuid.UUID]*types.Zone
	sensors  map[uuid.UUID]*types.Vertex
}

func newResolver(dbc dbctx.Context, set repos.Set, farmID uuid.UUID) *resolver {
	return &resolver{
		dbc:      dbc,
		repos:    set,
		farmID:   farmID,
		vertices: map[uuid.UUID]*types.Vertex{},
		zones:    map[uuid.UUID]*types.Zone{},
		sensors:  map[uuid.UUID]*types.Vertex{},
	}
}

func (r *resolver) vertex(id uuid.UUID, allowed ...types.VertexType) (*types.Vertex, error) {
	v, ok := r.vertices[id]
	if !ok {
		var err error
		v, err = r.repos.Vertex.GetByID(r.dbc, id)
		if err != nil {
			return nil, err
		}
		r.vertices[id] = v
	}
	if v == nil {
		return nil, apperr.NotFound("vertex %s not found", id)
	}
	if v.FarmID != r.farmID {
		return nil, apperr.Invalid("vertex %s does not belong to farm %s", id, r.farmID)
	}
	for _, t := range allowed {
		if v.VertexType == t {
			return v, nil
		}
	}
	names := make([]string, len(allowed))
	for i, t := range allowed {
		names[i] = string(t)
	}
	sort.Strings(names)
	return nil, apperr.Invalid("vertex %s has invalid type %s; expected one of %s", id, v.VertexType, strings.Join(names, ","))
}

func (r *resolver) zone(id uuid.UUID) (*types.Zone, error) {
	z, ok := r.zones[id]
	if !ok {
		var err error
		z, err = r.repos.Zone.GetByID(r.dbc, id)
		if err != nil {
			return nil, err
		}
		r.zones[id] = z
	}
	if z == nil {
		return nil, apperr.NotFound("zone %s not found", id)
	}
	if z.FarmID != r.farmID {
		return nil, apperr.Invalid("zone %s does not belong to farm %s", id, r.farmID)
	}
	return z, nil
}

// zoneSensor is the earliest registered sensor of the zone, or nil.
func (r *resolver) zoneSensor(zoneID uuid.UUID) (*types.Vertex, error) {
	if v, ok := r.sensors[zoneID]; ok {
		return v, nil
	}
	v, err := r.repos.Vertex.FirstInZone(r.dbc, zoneID, farm.VertexSensor)
	if err != nil {
		return nil, err
	}
	r.sensors[zoneID] = v
	return v, nil
}
