package clockify

// TimeEntry is a time entry as returned by the API. Only the fields the
// tracker reads are mapped.
type TimeEntry struct {
	ID           string       `json:"id"`
	Description  string       `json:"description"`
	UserID       string       `json:"userId"`
	ProjectID    *string      `json:"projectId"`
	TagIDs       []string     `json:"tagIds"`
	TimeInterval TimeInterval `json:"timeInterval"`
}

// TimeInterval carries UTC timestamps ("2024-01-02T10:00:00Z") and an
// ISO-8601 duration ("PT1H30M"). End and Duration are null while the
// timer runs.
type TimeInterval struct {
	Start    string  `json:"start"`
	End      *string `json:"end"`
	Duration *string `json:"duration"`
}

type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Note     string `json:"note"`
	Archived bool   `json:"archived"`
}

type Tag struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}
