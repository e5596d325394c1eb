// Package line is the thin surface to the messaging platform: webhook
// payload framing, postback grammar, outbound message descriptors, and the
// REST client for replies and profile lookup.
package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

type EventKind string

const (
	EventKindMessage  EventKind = "message"
	EventKindImage    EventKind = "image"
	EventKindPostback EventKind = "postback"
)

// Event is one inbound conversation event, reduced to what the workflows
// consume: a text message, an image message, or a postback, always tied to
// one user. Image content is not inlined; MessageID is the handle for
// fetching it when a workflow actually wants the bytes.
type Event struct {
	Kind         EventKind
	UserID       string
	ReplyToken   string
	Text         string
	PostbackData string
	MessageID    string
}

// Data returns the event's raw payload regardless of kind: postback data for
// button events, the message text otherwise.
func (e Event) Data() string {
	if e.Kind == EventKindPostback {
		return e.PostbackData
	}
	return e.Text
}

type webhookEvent struct {
	Type    string `json:"type"`
	Source  struct {
		UserID string `json:"userId"`
	} `json:"source"`
	ReplyToken string `json:"replyToken"`
	Message    struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
	Postback struct {
		Data string `json:"data"`
	} `json:"postback"`
}

type webhookPayload struct {
	Events []webhookEvent `json:"events"`
}

// ParseWebhook extracts the events the workflows can consume. Event types
// other than text messages, image messages and postbacks are dropped here.
func ParseWebhook(body []byte) ([]Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(payload.Events))
	for _, we := range payload.Events {
		switch we.Type {
		case "message":
			switch we.Message.Type {
			case "text":
				events = append(events, Event{
					Kind:       EventKindMessage,
					UserID:     we.Source.UserID,
					ReplyToken: we.ReplyToken,
					Text:       we.Message.Text,
				})
			case "image":
				events = append(events, Event{
					Kind:       EventKindImage,
					UserID:     we.Source.UserID,
					ReplyToken: we.ReplyToken,
					MessageID:  we.Message.ID,
				})
			}
		case "postback":
			events = append(events, Event{
				Kind:         EventKindPostback,
				UserID:       we.Source.UserID,
				ReplyToken:   we.ReplyToken,
				PostbackData: we.Postback.Data,
			})
		}
	}
	return events, nil
}

// GroupByUser partitions one webhook batch into per-user slices, preserving
// the batch's arrival order within each user. A user's slice must be consumed
// sequentially: the session lock alone only serializes, it does not keep two
// already-dispatched events in order.
func GroupByUser(events []Event) [][]Event {
	index := make(map[string]int)
	var groups [][]Event
	for _, ev := range events {
		i, ok := index[ev.UserID]
		if !ok {
			i = len(groups)
			index[ev.UserID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], ev)
	}
	return groups
}

// ValidateSignature checks the webhook body against the platform signature
// header (HMAC-SHA256 over the raw body, base64-encoded).
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
