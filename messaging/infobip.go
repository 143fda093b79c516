// Package messaging talks to the Infobip WhatsApp API.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// InboundPayload is the webhook body Infobip posts for received WhatsApp messages.
type InboundPayload struct {
	Results []InboundMessage `json:"results"`
}

type InboundMessage struct {
	From      string `json:"from"`
	To        string `json:"to"`
	MessageID string `json:"messageId"`
	Message   struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

type Settings struct {
	BaseURL      string
	APIKey       string
	Sender       string
	TemplateName string
	LogoURL      string
	Language     string
	Timeout      time.Duration
}

type Client struct {
	settings   Settings
	httpClient *http.Client
}

func NewClient(s Settings) *Client {
	return &Client{
		settings:   s,
		httpClient: &http.Client{Timeout: s.Timeout},
	}
}

type textMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Client) SendText(ctx context.Context, to, text string) error {
	msg := textMessage{From: c.settings.Sender, To: to}
	msg.Content.Text = text
	return c.post(ctx, "/whatsapp/1/message/text", msg)
}

type templateEnvelope struct {
	Messages []templateMessage `json:"messages"`
}

type templateMessage struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Content templateContent `json:"content"`
}

type templateContent struct {
	TemplateName string       `json:"templateName"`
	TemplateData templateData `json:"templateData"`
	Language     string       `json:"language"`
}

type templateData struct {
	Body struct {
		Placeholders []string `json:"placeholders"`
	} `json:"body"`
	Header *templateHeader `json:"header,omitempty"`
}

type templateHeader struct {
	Type     string `json:"type"`
	MediaURL string `json:"mediaUrl"`
}

// SendPaymentTemplate confirms a push request; placeholders are amount, payer phone and plate.
func (c *Client) SendPaymentTemplate(ctx context.Context, to string, amount int, phone, plate string) error {
	data := templateData{}
	data.Body.Placeholders = []string{fmt.Sprint(amount), phone, plate}
	if c.settings.LogoURL != "" {
		data.Header = &templateHeader{Type: "IMAGE", MediaURL: c.settings.LogoURL}
	}
	env := templateEnvelope{Messages: []templateMessage{{
		From: c.settings.Sender,
		To:   to,
		Content: templateContent{
			TemplateName: c.settings.TemplateName,
			TemplateData: data,
			Language:     c.settings.Language,
		},
	}}}
	return c.post(ctx, "/whatsapp/1/message/template", env)
}

func (c *Client) post(ctx context.Context, path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := strings.TrimRight(c.settings.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "App "+c.settings.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("infobip status code %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
