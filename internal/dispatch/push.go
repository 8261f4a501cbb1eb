package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// PushNotifier tries the driver's websocket first and falls back to posting
// the offer to an HTTP push endpoint (for drivers without an open socket).
type PushNotifier struct {
	Endpoint string
	Key      string
	Client   *http.Client
	WS       *WSRegistry
}

func NewPushNotifier(endpoint, key string, ws *WSRegistry) *PushNotifier {
	return &PushNotifier{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}, WS: ws}
}

func (p *PushNotifier) Offer(driverID string, a models.Assignment) error {
	if p.WS != nil {
		if err := p.WS.Offer(driverID, a); err == nil {
			return nil
		}
	}
	if p.Endpoint == "" {
		return ErrNoSession
	}
	body := map[string]any{"driver_id": driverID, "offer": a}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, p.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Key != "" {
		req.Header.Set("Authorization", "Bearer "+p.Key)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint status %d", resp.StatusCode)
	}
	return nil
}
