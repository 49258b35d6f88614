package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
	"github.com/agrisense/agrisense-backend/internal/platform/neo4jdb"
)

// Topology is the persisted shape of one farm, projected into Neo4j.
type Topology struct {
	Farm       *types.Farm
	Zones      []*types.Zone
	Vertices   []*types.Vertex
	HyperEdges []*types.HyperEdge
}

// UpsertFarmTopology MERGEs the farm's zones, vertices and hyperedges.
// Hyperedges become nodes with MEMBER relationships to their vertices.
func UpsertFarmTopology(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, topo Topology) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if topo.Farm == nil || topo.Farm.ID == uuid.Nil {
		return fmt.Errorf("neo4j topology sync: missing farm")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	farmID := topo.Farm.ID.String()

	zones := make([]map[string]any, 0, len(topo.Zones))
	for _, z := range topo.Zones {
		if z == nil {
			continue
		}
		zones = append(zones, map[string]any{
			"id":        z.ID.String(),
			"name":      z.Name,
			"zone_type": string(z.ZoneType),
			"area_m2":   z.AreaM2,
			"soil_type": z.SoilType,
			"synced_at": now,
		})
	}

	vertices := make([]map[string]any, 0, len(topo.Vertices))
	for _, v := range topo.Vertices {
		if v == nil {
			continue
		}
		zoneID := ""
		if v.ZoneID != nil {
			zoneID = v.ZoneID.String()
		}
		vertices = append(vertices, map[string]any{
			"id":          v.ID.String(),
			"vertex_type": string(v.VertexType),
			"zone_id":     zoneID,
			"config_json": string(v.Config),
			"synced_at":   now,
		})
	}

	members := make([]map[string]any, 0)
	edges := make([]map[string]any, 0, len(topo.HyperEdges))
	for _, e := range topo.HyperEdges {
		if e == nil {
			continue
		}
		edges = append(edges, map[string]any{
			"id":            e.ID.String(),
			"layer":         string(e.Layer),
			"metadata_json": string(e.Metadata),
			"synced_at":     now,
		})
		for _, vid := range e.VertexIDs {
			members = append(members, map[string]any{"edge_id": e.ID.String(), "vertex_id": vid})
		}
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	for _, stmt := range []string{
		`CREATE CONSTRAINT farm_id_unique IF NOT EXISTS FOR (f:Farm) REQUIRE f.id IS UNIQUE`,
		`CREATE CONSTRAINT vertex_id_unique IF NOT EXISTS FOR (v:Vertex) REQUIRE v.id IS UNIQUE`,
	} {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			if log != nil {
				log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
		} else {
			_, _ = res.Consume(ctx)
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		run := func(cypher string, params map[string]any) error {
			res, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return err
			}
			_, err = res.Consume(ctx)
			return err
		}

		if err := run(`
MERGE (f:Farm {id: $farm.id})
SET f += $farm
`, map[string]any{"farm": map[string]any{
			"id":        farmID,
			"name":      topo.Farm.Name,
			"farm_type": string(topo.Farm.FarmType),
			"synced_at": now,
		}}); err != nil {
			return nil, err
		}

		if len(zones) > 0 {
			if err := run(`
MATCH (f:Farm {id: $farm_id})
UNWIND $zones AS z
MERGE (n:Zone {id: z.id})
SET n += z
MERGE (f)-[:HAS_ZONE]->(n)
`, map[string]any{"farm_id": farmID, "zones": zones}); err != nil {
				return nil, err
			}
		}

		if len(vertices) > 0 {
			if err := run(`
MATCH (f:Farm {id: $farm_id})
UNWIND $vertices AS v
MERGE (n:Vertex {id: v.id})
SET n += v
MERGE (f)-[:HAS_VERTEX]->(n)
WITH n, v
WHERE v.zone_id <> ''
MATCH (z:Zone {id: v.zone_id})
MERGE (z)-[:CONTAINS]->(n)
`, map[string]any{"farm_id": farmID, "vertices": vertices}); err != nil {
				return nil, err
			}
		}

		if len(edges) > 0 {
			if err := run(`
MATCH (f:Farm {id: $farm_id})
UNWIND $edges AS e
MERGE (h:HyperEdge {id: e.id})
SET h += e
MERGE (f)-[:HAS_EDGE]->(h)
`, map[string]any{"farm_id": farmID, "edges": edges}); err != nil {
				return nil, err
			}
		}

		if len(members) > 0 {
			if err := run(`
UNWIND $members AS m
MATCH (h:HyperEdge {id: m.edge_id})
MATCH (v:Vertex {id: m.vertex_id})
MERGE (h)-[:MEMBER]->(v)
`, map[string]any{"members": members}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j topology sync: %w", err)
	}
	return nil
}
