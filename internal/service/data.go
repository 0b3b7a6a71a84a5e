package service

import (
	"context"
	"fmt"

	"github.com/rifthq/smartstats/internal/apperr"
	"github.com/rifthq/smartstats/internal/domain"
	"github.com/rifthq/smartstats/internal/repository/stats"
)

// DataService answers read-only queries against the esports stats database.
type DataService struct {
	matches *stats.MatchRepository
	players *stats.PlayerRepository
	options *stats.OptionsRepository
}

// NewDataService creates a new data service
func NewDataService(
	matches *stats.MatchRepository,
	players *stats.PlayerRepository,
	options *stats.OptionsRepository,
) *DataService {
	return &DataService{
		matches: matches,
		players: players,
		options: options,
	}
}

// PagedResult wraps a page of query results with the total count.
type PagedResult[T any] struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Items    []T   `json:"items"`
}

// SearchMatches filters, sorts and pages matches.
func (s *DataService) SearchMatches(ctx context.Context, req domain.MatchSearchRequest) (*PagedResult[domain.Match], error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}
	switch req.Sort.Field {
	case "", "matchDate", "tournament":
	default:
		return nil, apperr.New(apperr.CodeInvalidArgument, fmt.Sprintf("unsupported sort field %q", req.Sort.Field))
	}

	items, total, err := s.matches.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search matches: %w", err)
	}

	return &PagedResult[domain.Match]{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// SearchPlayers finds players by case-insensitive name fragment.
func (s *DataService) SearchPlayers(ctx context.Context, q string, page, pageSize int) (*PagedResult[domain.Player], error) {
	if q == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "query must not be empty")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := s.players.Search(ctx, q, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to search players: %w", err)
	}

	return &PagedResult[domain.Player]{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Items:    items,
	}, nil
}

// Options returns the requested filter option sets. An empty need list
// returns all of them.
func (s *DataService) Options(ctx context.Context, req domain.DataOptionsRequest) (map[string]any, error) {
	need := req.Need
	if len(need) == 0 {
		need = []string{"teams", "players", "patches"}
	}

	out := make(map[string]any, len(need))
	for _, n := range need {
		switch n {
		case "teams":
			teams, err := s.options.Teams(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list teams: %w", err)
			}
			out["teams"] = teams
		case "players":
			players, err := s.options.Players(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list players: %w", err)
			}
			out["players"] = players
		case "patches":
			patches, err := s.options.Patches(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list patches: %w", err)
			}
			out["patches"] = patches
		default:
			return nil, apperr.New(apperr.CodeInvalidArgument, fmt.Sprintf("unknown option set %q", n))
		}
	}

	return out, nil
}
