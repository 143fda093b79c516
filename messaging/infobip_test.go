package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient(Settings{
		BaseURL:      url + "/",
		APIKey:       "secret",
		Sender:       "12039414790",
		TemplateName: "ridgewayspushpayment",
		LogoURL:      "https://example.com/logo.png",
		Language:     "en_GB",
		Timeout:      time.Second,
	})
}

func TestClient_SendPaymentTemplate(t *testing.T) {
	var got templateEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/whatsapp/1/message/template" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "App secret" {
			t.Errorf("authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).SendPaymentTemplate(context.Background(), "254711111111", 100, "254722222222", "KCA123A")
	if err != nil {
		t.Fatalf("SendPaymentTemplate() error = %v", err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(got.Messages))
	}
	m := got.Messages[0]
	if m.To != "254711111111" || m.From != "12039414790" {
		t.Errorf("from/to = %s/%s", m.From, m.To)
	}
	if m.Content.TemplateName != "ridgewayspushpayment" || m.Content.Language != "en_GB" {
		t.Errorf("content = %+v", m.Content)
	}
	ph := m.Content.TemplateData.Body.Placeholders
	if strings.Join(ph, ",") != "100,254722222222,KCA123A" {
		t.Errorf("placeholders = %v", ph)
	}
	if m.Content.TemplateData.Header == nil || m.Content.TemplateData.Header.Type != "IMAGE" {
		t.Errorf("header = %+v", m.Content.TemplateData.Header)
	}
}

func TestClient_SendText(t *testing.T) {
	var got textMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/whatsapp/1/message/text" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).SendText(context.Background(), "254711111111", "Amount due: KES 50"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if got.To != "254711111111" || got.Content.Text != "Amount due: KES 50" {
		t.Errorf("message = %+v", got)
	}
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"requestError":{}}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).SendText(context.Background(), "254711111111", "hi")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("SendText() error = %v, want 401", err)
	}
}

func TestInboundPayload_Decode(t *testing.T) {
	body := `{"results":[{"from":"254712345678","to":"12039414790","message":{"type":"TEXT","text":"pay KCA123A"}}]}`
	var p InboundPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(p.Results) != 1 || p.Results[0].From != "254712345678" || p.Results[0].Message.Text != "pay KCA123A" {
		t.Errorf("payload = %+v", p)
	}
}
