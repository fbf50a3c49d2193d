package location

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"backend-gocars/internal/safety"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, time.Minute), s
}

func TestPublishAndSample(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	fix := safety.RoutePoint{Lat: -6.2, Lng: 106.8, SpeedKmh: 42, RecordedAt: time.Now().Truncate(time.Second)}
	if err := store.Publish(ctx, "user-1", fix); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, ok, err := store.Sample(ctx, "user-1")
	if err != nil || !ok {
		t.Fatalf("sample: %v %v", err, ok)
	}
	if got.Lat != fix.Lat || got.Lng != fix.Lng || got.SpeedKmh != fix.SpeedKmh {
		t.Fatalf("fix roundtrip mismatch: %+v", got)
	}
}

func TestSampleMissingIsNotAnError(t *testing.T) {
	store, _ := newStore(t)

	_, ok, err := store.Sample(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("missing fix errored: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing fix")
	}
}

func TestFixExpires(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	if err := store.Publish(ctx, "user-1", safety.RoutePoint{Lat: 1, Lng: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Sample(ctx, "user-1")
	if err != nil || ok {
		t.Fatalf("expected expired fix to be absent, ok=%v err=%v", ok, err)
	}
}

func TestPublishStampsRecordedAt(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.Publish(ctx, "user-1", safety.RoutePoint{Lat: 1, Lng: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, ok, _ := store.Sample(ctx, "user-1")
	if !ok || got.RecordedAt.IsZero() {
		t.Fatalf("recorded_at not stamped: %+v", got)
	}
}

func TestLocationHandlers(t *testing.T) {
	store, _ := newStore(t)
	app := fiber.New()
	RegisterRoutes(app.Group("/location"), store, func(c *fiber.Ctx) error { return c.Next() })

	body := `{"user_id":"user-1","lat":-6.2,"lng":106.8,"speed_kmh":30}`
	req := httptest.NewRequest(http.MethodPost, "/location/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("report status: %v %d", err, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/location/user-1", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("read status: %v %d", err, resp.StatusCode)
	}
	var fix safety.RoutePoint
	if err := json.NewDecoder(resp.Body).Decode(&fix); err != nil || fix.Lat != -6.2 {
		t.Fatalf("decode fix: %v %+v", err, fix)
	}

	req = httptest.NewRequest(http.MethodGet, "/location/ghost", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing user status: %v %d", err, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/location/", strings.NewReader(`{"lat":1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing user_id status: %v %d", err, resp.StatusCode)
	}
}
