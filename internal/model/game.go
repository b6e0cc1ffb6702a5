package model

import "time"

// UnrankedPosition is the ranking given to a freshly created game or user so
// that it sorts at the bottom of any leaderboard until the next ranking pass.
const UnrankedPosition = 1000000

// Game is a project on the time-tracking service, mirrored locally.
// Games are created lazily the first time a time entry references an
// unknown project.
type Game struct {
	ID          string    `json:"id"          db:"id"`
	ProjectID   string    `json:"projectId"   db:"project_id"` // external project id
	Name        string    `json:"name"        db:"name"`
	Dev         string    `json:"dev"         db:"dev"`
	ReleaseDate string    `json:"releaseDate" db:"release_date"`
	Genres      string    `json:"genres"      db:"genres"`
	AvgTime     int64     `json:"avgTime"     db:"avg_time"` // average completion estimate, seconds
	ImageURL    string    `json:"imageUrl"    db:"image_url"`
	Slug        string    `json:"slug"        db:"slug"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
}

// GameStatistics is the per-season aggregate for a Game.
// LastRanking is the snapshot the previous ranking pass left behind.
type GameStatistics struct {
	GameID         string `json:"gameId"         db:"game_id"`
	PlayedTime     int64  `json:"playedTime"     db:"played_time"`
	CurrentRanking int    `json:"currentRanking" db:"current_ranking"`
	LastRanking    int    `json:"lastRanking"    db:"last_ranking"`
}

// UserGame associates a user with a game they have played.
//
// Lifecycle: created on the first reconciled entry for the pair (Playing),
// then flipped to Completed exactly once. Platform may change while Playing.
type UserGame struct {
	ID             string `json:"id"             db:"id"`
	UserID         string `json:"userId"         db:"user_id"`
	GameID         string `json:"gameId"         db:"game_id"`
	ProjectID      string `json:"projectId"      db:"project_id"`
	GameName       string `json:"gameName"       db:"-"` // filled by joins
	Platform       string `json:"platform"       db:"platform"`
	Completed      bool   `json:"completed"      db:"completed"`
	StartedDate    string `json:"startedDate"    db:"started_date"`
	CompletedDate  string `json:"completedDate"  db:"completed_date"`
	PlayedTime     int64  `json:"playedTime"     db:"played_time"`
	CompletionTime int64  `json:"completionTime" db:"completion_time"`
}

// PlatformPlaceholder is what older rows carry when the platform is unknown.
const PlatformPlaceholder = "TBD"

// HasPlatform reports whether the association has a real platform set.
func (ug *UserGame) HasPlatform() bool {
	return ug.Platform != "" && ug.Platform != PlatformPlaceholder
}
