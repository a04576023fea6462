// Package messenger delivers assistant replies back to the WhatsApp user
// through the ticketing platform's send-message API.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atendai/atendai/errors"
	"github.com/atendai/atendai/internal/mylog"
)

type (
	Sender interface {
		Send(ctx context.Context, number, body string) error
	}

	client struct {
		apiURL string
		token  string
		http   *http.Client
		logger *mylog.Logger
	}
)

var _ Sender = (*client)(nil)

func NewClient(apiURL, token string, logger *mylog.Logger) Sender {
	return &client{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (c *client) Send(ctx context.Context, number, body string) error {
	payload, err := json.Marshal(map[string]string{
		"number": number,
		"body":   body,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to marshal send payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/messages/send", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "failed to create send request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to send message to %s", number)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		c.logger.Error("messenger send failed", "number", number, "status", resp.StatusCode, "body", string(respBody))
		return errors.Wrapf(errors.ErrUpstream, "messenger send returned status %d", resp.StatusCode)
	}

	return nil
}
