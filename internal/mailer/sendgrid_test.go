package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSendGrid_buildPayload(t *testing.T) {
	sg := &SendGrid{}
	msg := &Message{
		ID:       "e1",
		From:     "sender@example.com",
		To:       "a@example.com",
		Cc:       []string{"b@example.com"},
		Bcc:      []string{"c@example.com", "d@example.com"},
		ReplyTo:  "reply@example.com",
		Subject:  "Payment reminder",
		HTMLBody: "<p>Due soon</p>",
	}

	payload := sg.buildPayload(msg)

	if len(payload.Personalizations) != 1 {
		t.Fatalf("expected 1 personalization, got %d", len(payload.Personalizations))
	}
	p := payload.Personalizations[0]
	if len(p.To) != 1 || p.To[0].Email != "a@example.com" {
		t.Errorf("unexpected to: %+v", p.To)
	}
	if len(p.Cc) != 1 || p.Cc[0].Email != "b@example.com" {
		t.Errorf("unexpected cc: %+v", p.Cc)
	}
	if len(p.Bcc) != 2 {
		t.Errorf("expected 2 bcc, got %d", len(p.Bcc))
	}
	if payload.ReplyTo == nil || payload.ReplyTo.Email != "reply@example.com" {
		t.Errorf("unexpected reply_to: %+v", payload.ReplyTo)
	}
	if len(payload.Content) != 1 || payload.Content[0].Type != "text/html" || payload.Content[0].Value != "<p>Due soon</p>" {
		t.Errorf("unexpected content: %+v", payload.Content)
	}
	if payload.CustomArgs["scheduled_email_id"] != "e1" {
		t.Errorf("expected custom arg with record id, got %v", payload.CustomArgs)
	}
}

func TestSendGrid_buildPayload_OmitsEmptyOptionals(t *testing.T) {
	sg := &SendGrid{}
	payload := sg.buildPayload(&Message{From: "s@example.com", To: "a@example.com", Subject: "S", HTMLBody: "x"})

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]interface{}
	_ = json.Unmarshal(data, &raw)
	if _, ok := raw["reply_to"]; ok {
		t.Error("expected reply_to to be omitted")
	}
	pers := raw["personalizations"].([]interface{})[0].(map[string]interface{})
	if _, ok := pers["cc"]; ok {
		t.Error("expected cc to be omitted")
	}
}

func TestSendGrid_Send_Success(t *testing.T) {
	client := &mockHTTPClient{response: &HTTPResponse{
		StatusCode: 202,
		Headers:    map[string]string{"X-Message-Id": "sg-123"},
	}}
	sg := NewSendGrid(Config{APIKey: "key"}, client)

	res, err := sg.Send(context.Background(), &Message{From: "s@example.com", To: "a@example.com", Subject: "S", HTMLBody: "x"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.MessageID != "sg-123" {
		t.Errorf("expected message id sg-123, got %s", res.MessageID)
	}
	if client.lastReq.URL != "https://api.sendgrid.com/v3/mail/send" {
		t.Errorf("unexpected URL %s", client.lastReq.URL)
	}
	if client.lastReq.Headers["Authorization"] != "Bearer key" {
		t.Errorf("unexpected auth header %q", client.lastReq.Headers["Authorization"])
	}
}

func TestSendGrid_Send_ClassifiesFailure(t *testing.T) {
	client := &mockHTTPClient{response: &HTTPResponse{StatusCode: 401, Body: []byte("unauthorized")}}
	sg := NewSendGrid(Config{APIKey: "key", Endpoint: "http://localhost:9999"}, client)

	_, err := sg.Send(context.Background(), &Message{To: "a@example.com"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsPermanent(err) {
		t.Errorf("expected 401 to be permanent, got %v", err)
	}
}

func TestSendGrid_Send_TransportError(t *testing.T) {
	client := &mockHTTPClient{err: errors.New("connection refused")}
	sg := NewSendGrid(Config{APIKey: "key"}, client)

	_, err := sg.Send(context.Background(), &Message{To: "a@example.com"})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsPermanent(err) {
		t.Error("transport errors must not be permanent")
	}
}
