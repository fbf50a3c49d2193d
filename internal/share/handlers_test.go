package share

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func shareApp(mock pgxmock.PgxPoolIface, sessions SessionSource) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/share"), NewService(mock, sessions), func(c *fiber.Ctx) error { return c.Next() })
	return app
}

func TestShareHandlers(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`INSERT INTO share_links`).
		WithArgs(pgxmock.AnyArg(), "sess-1", "user-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	app := shareApp(mock, &fakeSessions{sess: liveSession()})

	body, _ := json.Marshal(map[string]string{"user_id": "user-1", "session_id": "sess-1"})
	req := httptest.NewRequest(http.MethodPost, "/share/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %v", err)
	}

	var link Link
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil || link.Token == "" {
		t.Fatalf("decode link: %v (%+v)", err, link)
	}

	mock.ExpectQuery(`SELECT token, session_id, user_id, created_at, expires_at, revoked_at`).
		WithArgs(link.Token).
		WillReturnRows(linkRow(link.Token, "sess-1", "user-1", link.ExpiresAt, nil))

	req = httptest.NewRequest(http.MethodGet, "/share/"+link.Token, nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status: %v", err)
	}

	var view TripView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil || view.RideID != "ride-1" {
		t.Fatalf("decode view: %v (%+v)", err, view)
	}

	mock.ExpectExec(`UPDATE share_links SET revoked_at`).
		WithArgs(link.Token, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	req = httptest.NewRequest(http.MethodDelete, "/share/user-1/"+link.Token, nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke status: %v", err)
	}
}

func TestShareHandlersValidation(t *testing.T) {
	app := shareApp(nil, &fakeSessions{})

	body, _ := json.Marshal(map[string]string{"user_id": "user-1"})
	req := httptest.NewRequest(http.MethodPost, "/share/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request")
	}
}

func TestShareHandlersCreateUnknownSession(t *testing.T) {
	app := shareApp(nil, &fakeSessions{})

	body, _ := json.Marshal(map[string]string{"user_id": "user-1", "session_id": "missing"})
	req := httptest.NewRequest(http.MethodPost, "/share/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found")
	}
}

func TestShareHandlersResolveGone(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT token, session_id, user_id, created_at, expires_at, revoked_at`).
		WithArgs("tok-1").
		WillReturnRows(linkRow("tok-1", "sess-1", "user-1", time.Now().Add(-time.Minute), nil))

	app := shareApp(mock, &fakeSessions{sess: liveSession()})

	req := httptest.NewRequest(http.MethodGet, "/share/tok-1", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusGone {
		t.Fatalf("expected gone for expired link")
	}
}

func TestShareHandlersResolveEnded(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT token, session_id, user_id, created_at, expires_at, revoked_at`).
		WithArgs("tok-1").
		WillReturnRows(linkRow("tok-1", "sess-gone", "user-1", time.Now().Add(time.Hour), nil))

	app := shareApp(mock, &fakeSessions{})

	req := httptest.NewRequest(http.MethodGet, "/share/tok-1", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusGone {
		t.Fatalf("expected gone for ended ride")
	}
}

func TestShareHandlersLinks(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT token, session_id, user_id, created_at, expires_at, revoked_at`).
		WithArgs("user-1").
		WillReturnRows(linkRow("tok-1", "sess-1", "user-1", time.Now().Add(time.Hour), nil))

	app := shareApp(mock, &fakeSessions{})

	req := httptest.NewRequest(http.MethodGet, "/share/links/user-1", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("links status: %v", err)
	}

	var links []Link
	if err := json.NewDecoder(resp.Body).Decode(&links); err != nil || len(links) != 1 {
		t.Fatalf("decode links: %v (%d)", err, len(links))
	}
}

func TestShareHandlersRevokeNotFound(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`UPDATE share_links SET revoked_at`).
		WithArgs("tok-x", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	app := shareApp(mock, &fakeSessions{})

	req := httptest.NewRequest(http.MethodDelete, "/share/user-1/tok-x", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found")
	}
}
