package shared

import (
	"time"

	"github.com/google/uuid"
)

// PaymentRequested is published once the payment collaborator accepted a push request.
type PaymentRequested struct {
	EventId   string `json:"event_id"`
	Plate     string `json:"vehicle_plate"`
	Phone     string `json:"phone"`
	Amount    int    `json:"amount"`
	Reference string `json:"reference"`
	Channel   string `json:"channel"`
	Facility  string `json:"facility"`
	Ts        string `json:"ts"`
}

func NewPaymentRequested(plate, phone string, amount int, reference, channel, facility string) (PaymentRequested, error) {
	id, err := NewId("PAY")
	if err != nil {
		return PaymentRequested{}, err
	}
	return PaymentRequested{
		EventId:   id,
		Plate:     plate,
		Phone:     phone,
		Amount:    amount,
		Reference: reference,
		Channel:   channel,
		Facility:  facility,
		Ts:        time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// NewId returns a time-ordered id such as "PAY:0190b6c2-...".
func NewId(prefix string) (string, error) {
	v7, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return prefix + ":" + v7.String(), nil
}
