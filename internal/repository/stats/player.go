package stats

import (
	"context"
	"fmt"

	"github.com/rifthq/smartstats/internal/domain"
)

// PlayerRepository queries the players table.
type PlayerRepository struct {
	db *DB
}

// NewPlayerRepository creates a player repository.
func NewPlayerRepository(db *DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// Search pages players whose name contains q, case insensitive.
func (r *PlayerRepository) Search(ctx context.Context, q string, page, pageSize int) ([]domain.Player, int64, error) {
	pattern := "%" + q + "%"

	var total int64
	if err := r.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM players WHERE LOWER(name) LIKE LOWER(?)`, pattern,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count players: %w", err)
	}

	page = max(page, 1)
	pageSize = max(pageSize, 1)

	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT id, name, team_id, position
		FROM players
		WHERE LOWER(name) LIKE LOWER(?)
		ORDER BY name ASC
		LIMIT ? OFFSET ?
	`, pattern, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.TeamID, &p.Position); err != nil {
			return nil, 0, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate players: %w", err)
	}
	return players, total, nil
}
