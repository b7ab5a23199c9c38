package mailer

import (
	"context"
	"net/url"
	"testing"
)

func TestMailgun_buildForm(t *testing.T) {
	mg := &Mailgun{}
	form := mg.buildForm(&Message{
		ID:       "e1",
		From:     "s@example.com",
		To:       "a@example.com",
		Cc:       []string{"b@example.com", "c@example.com"},
		Bcc:      []string{"d@example.com"},
		ReplyTo:  "r@example.com",
		Subject:  "Hello",
		HTMLBody: "<b>hi</b>",
	})

	checks := map[string]string{
		"from":                 "s@example.com",
		"to":                   "a@example.com",
		"cc":                   "b@example.com,c@example.com",
		"bcc":                  "d@example.com",
		"h:Reply-To":           "r@example.com",
		"subject":              "Hello",
		"html":                 "<b>hi</b>",
		"v:scheduled_email_id": "e1",
	}
	for key, want := range checks {
		if got := form.Get(key); got != want {
			t.Errorf("form[%s] = %q, want %q", key, got, want)
		}
	}
}

func TestMailgun_Send(t *testing.T) {
	client := &mockHTTPClient{response: &HTTPResponse{
		StatusCode: 200,
		Body:       []byte(`{"id":"<mg-1@example.com>","message":"Queued. Thank you."}`),
	}}
	mg := NewMailgun(Config{APIKey: "key", Domain: "mg.example.com"}, client)

	res, err := mg.Send(context.Background(), &Message{From: "s@example.com", To: "a@example.com", Subject: "S", HTMLBody: "x"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.MessageID != "<mg-1@example.com>" {
		t.Errorf("unexpected message id %q", res.MessageID)
	}
	if client.lastReq.URL != "https://api.mailgun.net/v3/mg.example.com/messages" {
		t.Errorf("unexpected URL %s", client.lastReq.URL)
	}
	form, err := url.ParseQuery(string(client.lastReq.Body))
	if err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if form.Get("to") != "a@example.com" {
		t.Errorf("unexpected to %q", form.Get("to"))
	}
}

func TestMailgun_Send_RateLimited(t *testing.T) {
	client := &mockHTTPClient{response: &HTTPResponse{StatusCode: 429, Body: []byte("slow down")}}
	mg := NewMailgun(Config{APIKey: "key", Domain: "d"}, client)

	_, err := mg.Send(context.Background(), &Message{To: "a@example.com"})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsPermanent(err) {
		t.Error("429 must be transient")
	}
}
