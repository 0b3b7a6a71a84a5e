package domain

// Read-only esports statistics entities. The stats database is maintained
// by an external ingest pipeline; this service only queries it.

// Team is a competing organization.
type Team struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	Region    string `json:"region,omitempty"`
}

// Player is a rostered player.
type Player struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TeamID   *int64 `json:"teamId,omitempty"`
	Position string `json:"position,omitempty"`
}

// Match is a best-of series between two teams.
type Match struct {
	ID           int64  `json:"id"`
	Tournament   string `json:"tournament"`
	MatchDate    string `json:"matchDate"`
	Patch        string `json:"patch,omitempty"`
	BestOf       int    `json:"bestOf"`
	TeamAID      int64  `json:"teamAId"`
	TeamAName    string `json:"teamAName"`
	TeamBID      int64  `json:"teamBId"`
	TeamBName    string `json:"teamBName"`
	WinnerTeamID *int64 `json:"winnerTeamId,omitempty"`
}

// MatchSearchRequest filters and pages match search.
type MatchSearchRequest struct {
	Filter   MatchFilter `json:"filter"`
	Sort     MatchSort   `json:"sort"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

// MatchFilter narrows match search.
type MatchFilter struct {
	TeamID     *int64 `json:"teamId"`
	Tournament string `json:"tournament"`
	Patch      string `json:"patch"`
	DateFrom   string `json:"dateFrom"`
	DateTo     string `json:"dateTo"`
}

// MatchSort orders match search results.
type MatchSort struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// DataOptionsRequest selects which option sets to return.
type DataOptionsRequest struct {
	Need []string `json:"need"`
}
