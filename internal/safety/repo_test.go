package safety

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func TestUpsertSession(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewRepo(mock)
	sess := &MonitoringSession{
		ID:        "sess-1",
		UserID:    "user-1",
		RideID:    "ride-1",
		Status:    StatusMonitoring,
		RiskScore: 12.5,
		IsActive:  true,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO safety_sessions`).
		WithArgs("sess-1", "user-1", "ride-1", StatusMonitoring, 12.5, true, uint64(3),
			pgxmock.AnyArg(), sess.StartedAt, sess.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.UpsertSession(context.Background(), sess, 3); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionByID(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewRepo(mock)
	stored := &MonitoringSession{ID: "sess-1", UserID: "user-1", Status: StatusCompleted, RiskScore: 40}
	doc, _ := json.Marshal(stored)

	mock.ExpectQuery(`SELECT doc FROM safety_sessions WHERE id=\$1`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(doc))

	got, err := repo.SessionByID(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("session by id: %v", err)
	}
	if got.ID != "sess-1" || got.Status != StatusCompleted || got.RiskScore != 40 {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestSessionByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT doc FROM safety_sessions WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := NewRepo(mock).SessionByID(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestSessionsForUser(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	first, _ := json.Marshal(&MonitoringSession{ID: "sess-2", UserID: "user-1"})
	second, _ := json.Marshal(&MonitoringSession{ID: "sess-1", UserID: "user-1"})

	mock.ExpectQuery(`SELECT doc FROM safety_sessions WHERE user_id=\$1 ORDER BY started_at DESC`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(first).AddRow(second))

	got, err := NewRepo(mock).SessionsForUser(context.Background(), "user-1")
	if err != nil || len(got) != 2 {
		t.Fatalf("sessions for user: %v, %d", err, len(got))
	}
	if got[0].ID != "sess-2" {
		t.Fatalf("order not preserved: %+v", got[0])
	}
}
