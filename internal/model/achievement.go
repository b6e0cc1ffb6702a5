package model

// Achievement is a catalog row. Key is the stable identifier claims refer to.
type Achievement struct {
	Key      string `json:"key"      db:"key"`
	Title    string `json:"title"    db:"title"`
	Category string `json:"category" db:"category"`
}

// UserAchievement is a claim record: at most one per (user, key), ever.
type UserAchievement struct {
	UserID         string `json:"userId"         db:"user_id"`
	AchievementKey string `json:"achievementKey" db:"achievement_key"`
	Date           string `json:"date"           db:"date"`
}
