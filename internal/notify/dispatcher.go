package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"backend-gocars/internal/emergency"
)

// OpsDispatcher relays critical incidents to the operations desk. The desk
// subscribes to an FCM topic; the acknowledged responder record carries a
// conservative ETA until a human takes over.
type OpsDispatcher struct {
	fcm   *FCM
	topic string
	log   *slog.Logger
}

func NewOpsDispatcher(fcm *FCM, topic string, log *slog.Logger) *OpsDispatcher {
	if topic == "" {
		topic = "ops-emergency"
	}
	if log == nil {
		log = slog.Default()
	}
	return &OpsDispatcher{fcm: fcm, topic: topic, log: log.With("component", "dispatch")}
}

func (d *OpsDispatcher) ContactEmergencyServices(ctx context.Context, inc *emergency.Incident) (emergency.Responder, error) {
	title := fmt.Sprintf("EMERGENCY %s", inc.Type)
	body := fmt.Sprintf("Incident %s for user %s requires dispatch", inc.ID, inc.UserID)
	data := map[string]string{
		"incident_id": inc.ID,
		"user_id":     inc.UserID,
		"priority":    string(inc.Priority),
	}
	if inc.Location != nil {
		data["lat"] = fmt.Sprintf("%.6f", inc.Location.Lat)
		data["lng"] = fmt.Sprintf("%.6f", inc.Location.Lng)
	}

	if d.fcm != nil {
		if err := d.fcm.SendToTopic(ctx, d.topic, title, body, data); err != nil {
			return emergency.Responder{}, err
		}
	} else {
		d.log.Error("EMERGENCY DISPATCH (no fcm configured)",
			"incident_id", inc.ID,
			"user_id", inc.UserID,
			"priority", inc.Priority)
	}

	return emergency.Responder{
		ID:         uuid.NewString(),
		Name:       "emergency services desk",
		Status:     emergency.ResponderNotified,
		ETAMinutes: 10,
	}, nil
}
