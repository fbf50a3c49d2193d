package place

import (
	"context"
	"errors"
	"math"
	"sort"

	"backend-gocars/internal/db"
	"backend-gocars/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound = errors.New("place not found")
	ErrBadKind  = errors.New("kind must be home, work or favorite")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) CreatePlace(ctx context.Context, input Place) (Place, error) {
	if input.Kind == "" {
		input.Kind = KindFavorite
	}
	if !validKind(input.Kind) {
		return Place{}, ErrBadKind
	}

	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO places (id, user_id, label, address, kind, lat, lng)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, input.ID, input.UserID, input.Label, input.Address, input.Kind, input.Lat, input.Lng)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Place{}, err
	}
	return input, nil
}

func (s *Service) UpdatePlace(ctx context.Context, userID, id string, patch Place) (Place, error) {
	p, err := s.GetPlace(ctx, userID, id)
	if err != nil {
		return Place{}, err
	}
	if patch.Label != "" {
		p.Label = patch.Label
	}
	if patch.Address != "" {
		p.Address = patch.Address
	}
	if patch.Kind != "" {
		if !validKind(patch.Kind) {
			return Place{}, ErrBadKind
		}
		p.Kind = patch.Kind
	}
	if patch.Lat != 0 {
		p.Lat = patch.Lat
	}
	if patch.Lng != 0 {
		p.Lng = patch.Lng
	}

	_, err = s.db.Exec(ctx, `
		UPDATE places
		SET label=$3, address=$4, kind=$5, lat=$6, lng=$7
		WHERE id=$1 AND user_id=$2
	`, p.ID, userID, p.Label, p.Address, p.Kind, p.Lat, p.Lng)
	if err != nil {
		return Place{}, err
	}
	return p, nil
}

func (s *Service) GetPlace(ctx context.Context, userID, id string) (Place, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, label, COALESCE(address,''), kind, lat, lng, created_at
		FROM places WHERE id=$1 AND user_id=$2
	`, id, userID)
	var p Place
	if err := row.Scan(&p.ID, &p.UserID, &p.Label, &p.Address, &p.Kind, &p.Lat, &p.Lng, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Place{}, ErrNotFound
		}
		return Place{}, err
	}
	return p, nil
}

func (s *Service) ListPlaces(ctx context.Context, userID string) ([]Place, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, label, COALESCE(address,''), kind, lat, lng, created_at
		FROM places WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var places []Place
	for rows.Next() {
		var p Place
		if err := rows.Scan(&p.ID, &p.UserID, &p.Label, &p.Address, &p.Kind, &p.Lat, &p.Lng, &p.CreatedAt); err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, nil
}

func (s *Service) DeletePlace(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM places WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Nearby returns the user's saved places within radiusKm of a point, closest
// first. A degree of latitude spans about 111 km, so a bounding box narrows
// the scan and the haversine pass drops the box corners.
func (s *Service) Nearby(ctx context.Context, userID string, lat, lng, radiusKm float64) ([]Place, error) {
	latDelta := radiusKm / 111.0
	lngDelta := radiusKm / (111.0 * math.Cos(lat*math.Pi/180))

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, label, COALESCE(address,''), kind, lat, lng, created_at
		FROM places
		WHERE user_id=$1 AND lat BETWEEN $2 AND $3 AND lng BETWEEN $4 AND $5
	`, userID, lat-latDelta, lat+latDelta, lng-lngDelta, lng+lngDelta)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Place
	for rows.Next() {
		var p Place
		if err := rows.Scan(&p.ID, &p.UserID, &p.Label, &p.Address, &p.Kind, &p.Lat, &p.Lng, &p.CreatedAt); err != nil {
			return nil, err
		}
		if geo.HaversineKm(lat, lng, p.Lat, p.Lng) <= radiusKm {
			results = append(results, p)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return geo.HaversineKm(lat, lng, results[i].Lat, results[i].Lng) <
			geo.HaversineKm(lat, lng, results[j].Lat, results[j].Lng)
	})
	return results, nil
}
