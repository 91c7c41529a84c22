package whatsapp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
)

// InboundText is one user text message lifted out of a webhook delivery.
type InboundText struct {
	From      string // subject phone number
	MessageID string
	Text      string
	Timestamp string
}

// webhookPayload mirrors the Cloud API notification envelope, down to the
// parts we read. Status updates and non-text messages ride the same envelope
// and are skipped.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// DecodeWebhook extracts the text messages from one webhook delivery. A
// payload carrying only statuses or media decodes to an empty slice, not an
// error.
func DecodeWebhook(r io.Reader) ([]InboundText, error) {
	var payload webhookPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("whatsapp: decode webhook: %w", err)
	}

	var out []InboundText
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}
				out = append(out, InboundText{
					From:      msg.From,
					MessageID: msg.ID,
					Text:      msg.Text.Body,
					Timestamp: msg.Timestamp,
				})
			}
		}
	}
	return out, nil
}

// VerifySubscription answers the Cloud API GET handshake: when the mode and
// token match it returns the challenge to echo back.
func VerifySubscription(query url.Values, verifyToken string) (string, bool) {
	if query.Get("hub.mode") != "subscribe" {
		return "", false
	}
	if verifyToken == "" || query.Get("hub.verify_token") != verifyToken {
		return "", false
	}
	return query.Get("hub.challenge"), true
}
