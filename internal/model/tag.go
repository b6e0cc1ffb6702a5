package model

// TagKind distinguishes the two disjoint tag catalogs.
type TagKind string

const (
	TagPlatform TagKind = "platform"
	TagOther    TagKind = "other"
)

// Tag is a time-tracking tag mirrored locally. Platform tags name the
// platform a game was played on; other tags carry flags such as the
// completion marker.
type Tag struct {
	ID         string  `json:"id"         db:"id"`
	Name       string  `json:"name"       db:"name"`
	Kind       TagKind `json:"kind"       db:"-"`
	Completion bool    `json:"completion" db:"is_completion"`
}
