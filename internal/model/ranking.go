package model

// RankingKind names a leaderboard that is diffed between passes.
type RankingKind string

const (
	RankingUsers RankingKind = "users"
	RankingGames RankingKind = "games"
)

// Valid reports whether k is a known ranking kind.
func (k RankingKind) Valid() bool {
	return k == RankingUsers || k == RankingGames
}

// Standing is one row of a leaderboard as read from the store.
type Standing struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Value       int64  `json:"value"`
	LastRanking int    `json:"lastRanking"`
}

// LeaderboardMetric selects the column a read-only leaderboard is ordered by.
type LeaderboardMetric string

const (
	MetricPlayedTime     LeaderboardMetric = "played_time"
	MetricPlayedDays     LeaderboardMetric = "played_days"
	MetricBestStreak     LeaderboardMetric = "best_streak"
	MetricCurrentStreak  LeaderboardMetric = "current_streak"
	MetricPlayedGames    LeaderboardMetric = "played_games"
	MetricCompletedGames LeaderboardMetric = "completed_games"
	MetricAchievements   LeaderboardMetric = "achievements"
)
