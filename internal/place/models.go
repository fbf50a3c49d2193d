package place

import "time"

const (
	KindHome     = "home"
	KindWork     = "work"
	KindFavorite = "favorite"
)

// Place is a saved pickup or dropoff location. Home and work pre-fill the
// booking screen, favorites hold everything else.
type Place struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Label     string    `json:"label"`
	Address   string    `json:"address"`
	Kind      string    `json:"kind"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `json:"created_at"`
}

func validKind(kind string) bool {
	switch kind {
	case KindHome, KindWork, KindFavorite:
		return true
	}
	return false
}
