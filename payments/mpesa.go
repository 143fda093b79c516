// Package payments triggers M-Pesa push payments for parked vehicles.
package payments

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

type Request struct {
	Plate  string
	Phone  string
	Amount int
}

// Result is the collaborator's verdict. Reference is empty unless Accepted.
type Result struct {
	Accepted  bool
	Reference string
}

type Trigger interface {
	Trigger(ctx context.Context, req Request) (Result, error)
}

type MpesaClient struct {
	url        string
	httpClient *http.Client
}

// NewMpesaClient posts push requests to url. insecureTLS skips certificate
// verification for push endpoints served with a self-signed certificate.
func NewMpesaClient(url string, timeout time.Duration, insecureTLS bool) *MpesaClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &MpesaClient{
		url: url,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

type pushRequest struct {
	CarNo  string `json:"carno"`
	Phone  string `json:"phone"`
	Amount int    `json:"amount"`
}

type pushResponse struct {
	Code              int    `json:"code"`
	Message           string `json:"message"`
	Reference         string `json:"reference"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

func (c *MpesaClient) Trigger(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(pushRequest{CarNo: req.Plate, Phone: req.Phone, Amount: req.Amount})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{}, fmt.Errorf("push endpoint status code %d", resp.StatusCode)
	}

	var out pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("failed to decode push response: %w", err)
	}

	log.WithFields(log.Fields{
		"vehicle_plate": req.Plate,
		"code":          out.Code,
		"message":       out.Message,
	}).Debug("push payment response")

	if out.Code != http.StatusOK {
		return Result{Accepted: false}, nil
	}
	ref := out.Reference
	if ref == "" {
		ref = out.CheckoutRequestID
	}
	return Result{Accepted: true, Reference: ref}, nil
}
