package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSender_PostsReminderFields(t *testing.T) {
	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, "secret-token")
	err := sender.Send(context.Background(), Message{
		To:       "+15550001111",
		Body:     "Reminder: you have an appointment tomorrow.",
		RiskTier: "high",
		Template: "appointment_reminder",
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if auth != "Bearer secret-token" {
		t.Fatalf("expected bearer auth header, got %q", auth)
	}
	if got["to"] != "+15550001111" {
		t.Fatalf("expected recipient in payload, got %q", got["to"])
	}
	if got["risk_tier"] != "high" {
		t.Fatalf("expected risk_tier in payload, got %q", got["risk_tier"])
	}
	if got["template"] != "appointment_reminder" {
		t.Fatalf("expected template in payload, got %q", got["template"])
	}
}

func TestWebhookSender_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, "")
	err := sender.Send(context.Background(), Message{To: "+15550001111", Body: "hi"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestWebhookSender_RejectsEmptyRecipient(t *testing.T) {
	sender := NewWebhookSender("http://localhost:1", "")
	err := sender.Send(context.Background(), Message{Body: "hi"})
	if err == nil {
		t.Fatal("expected error for empty recipient")
	}
}
