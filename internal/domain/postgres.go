package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresReader reads domain records from the application's PostgreSQL
// database. All queries are read-only.
type PostgresReader struct {
	pool *pgxpool.Pool
}

// NewPostgresReader creates a Reader over the given connection pool.
// The pool is owned by the caller.
func NewPostgresReader(pool *pgxpool.Pool) *PostgresReader {
	return &PostgresReader{pool: pool}
}

var _ Reader = (*PostgresReader)(nil)

// scopeClause returns a WHERE fragment and args restricting column to the
// given home, or an always-true clause when homeID is nil.
func scopeClause(column string, homeID *uuid.UUID) (string, []any) {
	if homeID == nil {
		return "TRUE", nil
	}
	return column + " = $1", []any{*homeID}
}

// FloorPlans returns the floor plans in scope.
func (r *PostgresReader) FloorPlans(ctx context.Context, homeID *uuid.UUID) ([]FloorPlan, error) {
	where, args := scopeClause("home_id", homeID)
	rows, err := r.pool.Query(ctx,
		`SELECT id, home_id, name, level FROM floor_plans WHERE `+where+` ORDER BY home_id, level`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying floor plans: %w", err)
	}
	defer rows.Close()

	var plans []FloorPlan
	for rows.Next() {
		var fp FloorPlan
		if err := rows.Scan(&fp.ID, &fp.HomeID, &fp.Name, &fp.Level); err != nil {
			return nil, fmt.Errorf("scanning floor plan: %w", err)
		}
		plans = append(plans, fp)
	}
	return plans, rows.Err()
}

// Rooms returns the rooms in scope with their materials, fixtures and
// products attached.
func (r *PostgresReader) Rooms(ctx context.Context, homeID *uuid.UUID) ([]Room, error) {
	where, args := scopeClause("home_id", homeID)
	rows, err := r.pool.Query(ctx,
		`SELECT id, home_id, floor_plan_id, name, type, length_m, width_m
		 FROM rooms WHERE `+where+` ORDER BY home_id, name`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var roomList []Room
	byID := make(map[uuid.UUID]int)
	for rows.Next() {
		var rm Room
		if err := rows.Scan(&rm.ID, &rm.HomeID, &rm.FloorPlanID, &rm.Name, &rm.Type, &rm.LengthM, &rm.WidthM); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		byID[rm.ID] = len(roomList)
		roomList = append(roomList, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(roomList) == 0 {
		return nil, nil
	}

	if err := r.attachMaterials(ctx, homeID, roomList, byID); err != nil {
		return nil, err
	}
	if err := r.attachFixtures(ctx, homeID, roomList, byID); err != nil {
		return nil, err
	}
	if err := r.attachProducts(ctx, homeID, roomList, byID); err != nil {
		return nil, err
	}
	return roomList, nil
}

func (r *PostgresReader) attachMaterials(ctx context.Context, homeID *uuid.UUID, rooms []Room, byID map[uuid.UUID]int) error {
	return r.attach(ctx, homeID,
		`SELECT m.id, m.room_id, m.surface, m.name, COALESCE(m.note, '')
		 FROM materials m JOIN rooms rm ON rm.id = m.room_id WHERE `,
		func(rows pgx.Rows) error {
			var m Material
			if err := rows.Scan(&m.ID, &m.RoomID, &m.Surface, &m.Name, &m.Note); err != nil {
				return err
			}
			if i, ok := byID[m.RoomID]; ok {
				rooms[i].Materials = append(rooms[i].Materials, m)
			}
			return nil
		})
}

func (r *PostgresReader) attachFixtures(ctx context.Context, homeID *uuid.UUID, rooms []Room, byID map[uuid.UUID]int) error {
	return r.attach(ctx, homeID,
		`SELECT f.id, f.room_id, f.category, f.name, COALESCE(f.note, '')
		 FROM fixtures f JOIN rooms rm ON rm.id = f.room_id WHERE `,
		func(rows pgx.Rows) error {
			var f Fixture
			if err := rows.Scan(&f.ID, &f.RoomID, &f.Category, &f.Name, &f.Note); err != nil {
				return err
			}
			if i, ok := byID[f.RoomID]; ok {
				rooms[i].Fixtures = append(rooms[i].Fixtures, f)
			}
			return nil
		})
}

func (r *PostgresReader) attachProducts(ctx context.Context, homeID *uuid.UUID, rooms []Room, byID map[uuid.UUID]int) error {
	return r.attach(ctx, homeID,
		`SELECT p.id, p.room_id, p.category, COALESCE(p.brand, ''), p.name
		 FROM products p JOIN rooms rm ON rm.id = p.room_id WHERE `,
		func(rows pgx.Rows) error {
			var p Product
			if err := rows.Scan(&p.ID, &p.RoomID, &p.Category, &p.Brand, &p.Name); err != nil {
				return err
			}
			if i, ok := byID[p.RoomID]; ok {
				rooms[i].Products = append(rooms[i].Products, p)
			}
			return nil
		})
}

// attach runs a room-joined query scoped by home and feeds each row to scan.
func (r *PostgresReader) attach(ctx context.Context, homeID *uuid.UUID, queryPrefix string, scan func(pgx.Rows) error) error {
	where, args := scopeClause("rm.home_id", homeID)
	rows, err := r.pool.Query(ctx, queryPrefix+where, args...)
	if err != nil {
		return fmt.Errorf("querying room contents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scanning room contents: %w", err)
		}
	}
	return rows.Err()
}

// ImageAnalyses returns stored photo analysis results in scope.
func (r *PostgresReader) ImageAnalyses(ctx context.Context, homeID *uuid.UUID) ([]ImageAnalysis, error) {
	where, args := scopeClause("home_id", homeID)
	rows, err := r.pool.Query(ctx,
		`SELECT id, home_id, room_id, file_id, summary, findings
		 FROM image_analyses WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying image analyses: %w", err)
	}
	defer rows.Close()

	var out []ImageAnalysis
	for rows.Next() {
		var a ImageAnalysis
		if err := rows.Scan(&a.ID, &a.HomeID, &a.RoomID, &a.FileID, &a.Summary, &a.Findings); err != nil {
			return nil, fmt.Errorf("scanning image analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FloorPlanAnalyses returns stored floor plan analysis results in scope.
func (r *PostgresReader) FloorPlanAnalyses(ctx context.Context, homeID *uuid.UUID) ([]FloorPlanAnalysis, error) {
	where, args := scopeClause("home_id", homeID)
	rows, err := r.pool.Query(ctx,
		`SELECT id, home_id, floor_plan_id, summary, findings
		 FROM floor_plan_analyses WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying floor plan analyses: %w", err)
	}
	defer rows.Close()

	var out []FloorPlanAnalysis
	for rows.Next() {
		var a FloorPlanAnalysis
		if err := rows.Scan(&a.ID, &a.HomeID, &a.FloorPlanID, &a.Summary, &a.Findings); err != nil {
			return nil, fmt.Errorf("scanning floor plan analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RoomAnalyses returns stored whole-room assessments in scope.
func (r *PostgresReader) RoomAnalyses(ctx context.Context, homeID *uuid.UUID) ([]RoomAnalysis, error) {
	where, args := scopeClause("home_id", homeID)
	rows, err := r.pool.Query(ctx,
		`SELECT id, home_id, room_id, summary, findings
		 FROM room_analyses WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying room analyses: %w", err)
	}
	defer rows.Close()

	var out []RoomAnalysis
	for rows.Next() {
		var a RoomAnalysis
		if err := rows.Scan(&a.ID, &a.HomeID, &a.RoomID, &a.Summary, &a.Findings); err != nil {
			return nil, fmt.Errorf("scanning room analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
