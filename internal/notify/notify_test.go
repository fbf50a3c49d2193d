package notify

import (
	"context"
	"errors"
	"testing"

	"backend-gocars/internal/emergency"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) DeviceToken(ctx context.Context, userID string) (string, error) {
	return f.token, f.err
}

func TestPusherWithoutFCMLogsOnly(t *testing.T) {
	p := NewPusher(nil, &fakeTokens{token: "tok"}, nil)
	if err := p.NotifyUser(context.Background(), "user-1", "title", "body", nil); err != nil {
		t.Fatalf("log-only push errored: %v", err)
	}
}

func TestPusherSurfacesTokenLookupFailure(t *testing.T) {
	p := NewPusher(&FCM{}, &fakeTokens{err: errors.New("db down")}, nil)
	if err := p.NotifyUser(context.Background(), "user-1", "title", "body", nil); err == nil {
		t.Fatalf("expected token lookup error")
	}
}

func TestPusherSkipsUsersWithoutToken(t *testing.T) {
	p := NewPusher(&FCM{}, &fakeTokens{token: ""}, nil)
	if err := p.NotifyUser(context.Background(), "user-1", "title", "body", nil); err != nil {
		t.Fatalf("tokenless push should be a no-op: %v", err)
	}
}

func TestLogChannelsNeverFail(t *testing.T) {
	c := NewLogChannels(nil)
	ctx := context.Background()
	if err := c.SendSMS(ctx, "+62811", "hi"); err != nil {
		t.Fatal(err)
	}
	if err := c.PlaceCall(ctx, "+62811", "emergency"); err != nil {
		t.Fatal(err)
	}
	if err := c.SendEmail(ctx, "a@example.com", "s", "b"); err != nil {
		t.Fatal(err)
	}
}

func TestOpsDispatcherWithoutFCMStillAssignsResponder(t *testing.T) {
	d := NewOpsDispatcher(nil, "", nil)
	r, err := d.ContactEmergencyServices(context.Background(), &emergency.Incident{
		ID:       "inc-1",
		UserID:   "user-1",
		Priority: emergency.PriorityCritical,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if r.ID == "" || r.Status != emergency.ResponderNotified || r.ETAMinutes <= 0 {
		t.Fatalf("unexpected responder: %+v", r)
	}
}
