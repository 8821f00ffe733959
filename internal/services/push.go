package services

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
)

// refreshPushType marks the data message observers react to; every other
// message type is ignored on the receiving side.
const refreshPushType = "refresh_widget"

// PushService delivers silent refresh_widget pushes over APNs so a partner's
// widget re-fetches shared state without the app in the foreground.
type PushService struct {
	client *apns2.Client
	topic  string
}

// NewPushService creates a push service from a p12 certificate.
func NewPushService(certPath, certPassword, topic string, production bool) (*PushService, error) {
	cert, err := certificate.FromP12File(certPath, certPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load push certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &PushService{
		client: client,
		topic:  topic,
	}, nil
}

// SendRefresh sends a background refresh_widget push to a device token.
func (p *PushService) SendRefresh(token string) error {
	notification := &apns2.Notification{
		DeviceToken: token,
		Topic:       p.topic,
		PushType:    apns2.PushTypeBackground,
		Priority:    apns2.PriorityLow,
		Payload:     []byte(fmt.Sprintf(`{"aps":{"content-available":1},"type":%q}`, refreshPushType)),
	}

	res, err := p.client.Push(notification)
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %s", res.Reason)
	}

	log.Debug().Str("apns_id", res.ApnsID).Msg("Refresh push sent")
	return nil
}
