package ride

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"backend-gocars/internal/shared/geo"
)

func newApp(mock pgxmock.PgxPoolIface) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/rides"), NewService(mock), func(c *fiber.Ctx) error { return c.Next() })
	return app
}

func postJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func TestCreateRideHandler(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO rides`).
		WithArgs(pgxmock.AnyArg(), "rider-1", StatusRequested, "", 0.0, 0.0, "", 1.0, 1.0, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"requested_at"}).AddRow(time.Now()))

	app := newApp(mock)
	resp := postJSON(t, app, http.MethodPost, "/rides/", CreateRideRequest{
		RiderID: "rider-1",
		Dropoff: geo.Point{Lat: 1, Lng: 1},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var ride Ride
	if err := json.NewDecoder(resp.Body).Decode(&ride); err != nil || ride.ID == "" {
		t.Fatalf("decode ride: %v %+v", err, ride)
	}
}

func TestCreateRideHandlerValidation(t *testing.T) {
	app := newApp(newMock(t))
	resp := postJSON(t, app, http.MethodPost, "/rides/", CreateRideRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetRideHandlerNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, rider_id`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	app := newApp(mock)
	req := httptest.NewRequest(http.MethodGet, "/rides/missing", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %v %d", err, resp.StatusCode)
	}
}

func TestStatusHandlerRejectsBadTransition(t *testing.T) {
	mock := newMock(t)
	stored := Ride{ID: "ride-1", RiderID: "rider-1", Status: StatusCompleted, RequestedAt: time.Now()}
	mock.ExpectQuery(`SELECT id, rider_id`).WithArgs("ride-1").WillReturnRows(rideRow(stored))

	app := newApp(mock)
	resp := postJSON(t, app, http.MethodPatch, "/rides/ride-1/status", UpdateStatusRequest{Status: StatusInProgress})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}
