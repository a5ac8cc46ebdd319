package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CallableEmailSender dispatches award emails through a remote callable
// function over HTTP. Callers treat failures as non-fatal.
type CallableEmailSender struct {
	url    string
	client *http.Client
}

func NewCallableEmailSender(url string, timeout time.Duration) *CallableEmailSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CallableEmailSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type emailPayload struct {
	To            string `json:"to"`
	CustomMessage string `json:"custom_message"`
	PrizeImageURL string `json:"prize_image_url"`
}

func (s *CallableEmailSender) SendEmail(ctx context.Context, to, customMessage, prizeImageURL string) error {
	body, err := json.Marshal(emailPayload{
		To:            to,
		CustomMessage: customMessage,
		PrizeImageURL: prizeImageURL,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send email: unexpected status %d", resp.StatusCode)
	}
	return nil
}
