// Package transport integrates with the external messaging service: an
// outbound webhook connector delivering question batches and an inbound
// handler resolving responses back to their answer records.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/PluxCo/testing-platform-old/internal/schedule"
)

// Connector posts message batches to the messaging service and reads back
// positionally aligned message ids, which become correlation tokens.
// Delivery is at-most-once; a failed item simply stays due.
type Connector struct {
	client     *http.Client
	messageURL string
	webhookURL string
	logger     zerolog.Logger
}

var _ schedule.Transport = (*Connector)(nil)

func NewConnector(messagingURL, webhookURL string, timeout time.Duration, logger zerolog.Logger) *Connector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Connector{
		client:     &http.Client{Timeout: timeout},
		messageURL: messagingURL + "/message",
		webhookURL: webhookURL,
		logger:     logger.With().Str("component", "transport_connector").Logger(),
	}
}

type sendRequest struct {
	Webhook  string             `json:"webhook"`
	Messages []schedule.Message `json:"messages"`
}

type sendResponse struct {
	SentMessages []struct {
		MessageID *string `json:"message_id"`
	} `json:"sent_messages"`
}

// Send delivers the batch in one call. The returned slice is aligned with
// the input; an empty token marks a person the service could not reach.
func (c *Connector) Send(ctx context.Context, batch []schedule.Message) ([]string, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(sendRequest{Webhook: c.webhookURL, Messages: batch})
	if err != nil {
		return nil, fmt.Errorf("encode message batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messageURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post message batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("messaging service returned %s", resp.Status)
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}

	tokens := make([]string, len(batch))
	for i, sent := range decoded.SentMessages {
		if i >= len(tokens) {
			c.logger.Warn().Int("extra", len(decoded.SentMessages)-len(batch)).
				Msg("messaging service acknowledged more messages than sent")
			break
		}
		if sent.MessageID != nil {
			tokens[i] = *sent.MessageID
		}
	}
	return tokens, nil
}
