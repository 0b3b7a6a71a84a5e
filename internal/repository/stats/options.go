package stats

import (
	"context"
	"fmt"

	"github.com/rifthq/smartstats/internal/domain"
)

// OptionsRepository serves the enumerable option sets used by search
// filter dropdowns.
type OptionsRepository struct {
	db *DB
}

// NewOptionsRepository creates an options repository.
func NewOptionsRepository(db *DB) *OptionsRepository {
	return &OptionsRepository{db: db}
}

// Teams lists all teams ordered by name.
func (r *OptionsRepository) Teams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.db.sql.QueryContext(ctx,
		`SELECT id, name, short_name, region FROM teams ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.ShortName, &t.Region); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// Players lists all players ordered by name.
func (r *OptionsRepository) Players(ctx context.Context) ([]domain.Player, error) {
	rows, err := r.db.sql.QueryContext(ctx,
		`SELECT id, name, team_id, position FROM players ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.TeamID, &p.Position); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// Patches lists the distinct game patches seen in matches, newest first.
func (r *OptionsRepository) Patches(ctx context.Context) ([]string, error) {
	rows, err := r.db.sql.QueryContext(ctx,
		`SELECT DISTINCT patch FROM matches WHERE patch <> '' ORDER BY patch DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patches: %w", err)
	}
	defer rows.Close()

	var patches []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan patch: %w", err)
		}
		patches = append(patches, p)
	}
	return patches, rows.Err()
}
