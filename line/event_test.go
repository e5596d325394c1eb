package line_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"bitbucket.org/mmdatafocus/stockbot_backend/line"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	if !line.ValidateSignature("secret", body, sign("secret", body)) {
		t.Error("valid signature rejected")
	}
	if line.ValidateSignature("secret", body, sign("other", body)) {
		t.Error("signature from a different secret accepted")
	}
	if line.ValidateSignature("secret", body, "") {
		t.Error("empty signature accepted")
	}
}

func TestParseWebhookKeepsConsumableEventsOnly(t *testing.T) {
	body := []byte(`{"events":[
		{"type":"message","source":{"userId":"U1"},"replyToken":"r1","message":{"type":"text","text":"hello"}},
		{"type":"message","source":{"userId":"U2"},"replyToken":"r2","message":{"id":"m42","type":"image"}},
		{"type":"message","source":{"userId":"U2"},"replyToken":"r2","message":{"type":"sticker"}},
		{"type":"postback","source":{"userId":"U3"},"replyToken":"r3","postback":{"data":"action=query"}},
		{"type":"follow","source":{"userId":"U4"},"replyToken":"r4"}
	]}`)

	events, err := line.ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Kind != line.EventKindMessage || events[0].Text != "hello" || events[0].UserID != "U1" {
		t.Errorf("unexpected message event: %+v", events[0])
	}
	if events[1].Kind != line.EventKindImage || events[1].MessageID != "m42" {
		t.Errorf("unexpected image event: %+v", events[1])
	}
	if events[2].Kind != line.EventKindPostback || events[2].PostbackData != "action=query" {
		t.Errorf("unexpected postback event: %+v", events[2])
	}
}

func TestGroupByUserPreservesArrivalOrderWithinUser(t *testing.T) {
	events := []line.Event{
		{Kind: line.EventKindMessage, UserID: "U1", Text: "10"},
		{Kind: line.EventKindMessage, UserID: "U2", Text: "first"},
		{Kind: line.EventKindPostback, UserID: "U1", PostbackData: "stock_confirm=yes"},
		{Kind: line.EventKindMessage, UserID: "U2", Text: "second"},
	}

	groups := line.GroupByUser(events)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	u1 := groups[0]
	if len(u1) != 2 || u1[0].Text != "10" || u1[1].PostbackData != "stock_confirm=yes" {
		t.Errorf("U1 events out of arrival order: %+v", u1)
	}
	u2 := groups[1]
	if len(u2) != 2 || u2[0].Text != "first" || u2[1].Text != "second" {
		t.Errorf("U2 events out of arrival order: %+v", u2)
	}
}

func TestParseWebhookRejectsMalformedBody(t *testing.T) {
	if _, err := line.ParseWebhook([]byte("not json")); err == nil {
		t.Error("expected error for malformed body")
	}
}
