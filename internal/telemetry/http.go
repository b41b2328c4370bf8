package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type HTTPEmitter struct {
	BaseURL string
	Client  *http.Client
}

func (h HTTPEmitter) EmitVisitCompleted(ctx context.Context, ev VisitEvent) error {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 5 * time.Second}
	}

	b, _ := json.Marshal(ev)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/events/visit-completed", bytes.NewBuffer(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("telemetry service error")
	}
	return nil
}
