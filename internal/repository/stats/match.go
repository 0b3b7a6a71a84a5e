package stats

import (
	"context"
	"fmt"
	"strings"

	"github.com/rifthq/smartstats/internal/domain"
)

// MatchRepository queries the matches table.
type MatchRepository struct {
	db *DB
}

// NewMatchRepository creates a match repository.
func NewMatchRepository(db *DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Search pages matches with optional filters, team names joined in.
func (r *MatchRepository) Search(ctx context.Context, req domain.MatchSearchRequest) ([]domain.Match, int64, error) {
	var conds []string
	var args []any

	f := req.Filter
	if f.TeamID != nil {
		conds = append(conds, "(m.team_a_id = ? OR m.team_b_id = ?)")
		args = append(args, *f.TeamID, *f.TeamID)
	}
	if f.Tournament != "" {
		conds = append(conds, "m.tournament = ?")
		args = append(args, f.Tournament)
	}
	if f.Patch != "" {
		conds = append(conds, "m.patch = ?")
		args = append(args, f.Patch)
	}
	// match_date is stored as a string; range filters compare lexically.
	if f.DateFrom != "" {
		conds = append(conds, "m.match_date >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		conds = append(conds, "m.match_date <= ?")
		args = append(args, f.DateTo)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM matches m %s", where)
	if err := r.db.sql.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count matches: %w", err)
	}

	orderBy := "m.match_date"
	if req.Sort.Field == "tournament" {
		orderBy = "m.tournament"
	}
	order := "DESC"
	if strings.EqualFold(req.Sort.Order, "asc") {
		order = "ASC"
	}

	page := max(req.Page, 1)
	pageSize := max(req.PageSize, 1)
	args = append(args, pageSize, (page-1)*pageSize)

	query := fmt.Sprintf(`
		SELECT m.id, m.tournament, m.match_date, m.patch, m.best_of,
			m.team_a_id, ta.name, m.team_b_id, tb.name, m.winner_team_id
		FROM matches m
		JOIN teams ta ON ta.id = m.team_a_id
		JOIN teams tb ON tb.id = m.team_b_id
		%s
		ORDER BY %s %s
		LIMIT ? OFFSET ?
	`, where, orderBy, order)

	rows, err := r.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(
			&m.ID,
			&m.Tournament,
			&m.MatchDate,
			&m.Patch,
			&m.BestOf,
			&m.TeamAID,
			&m.TeamAName,
			&m.TeamBID,
			&m.TeamBName,
			&m.WinnerTeamID,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return matches, total, nil
}
