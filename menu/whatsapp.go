package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/round-cube/parking-pay/store"
)

var whatsAppHelp = []string{
	"Sorry, we did not understand that. Send one of:",
	"time <plate> - time stayed",
	"amount <plate> - amount due",
	"pay <plate> [phone] - pay via M-Pesa",
}

// handleWhatsApp runs one self-contained command: "time|amount|pay <plate> [phone]".
func (e *Engine) handleWhatsApp(ctx context.Context, req Request) (Response, error) {
	fields := strings.Fields(req.Input)
	if len(fields) < 2 {
		return Response{}, unrecognized("whatsapp message %q", req.Input)
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	if cmd != "time" && cmd != "amount" && cmd != "pay" {
		return Response{}, unrecognized("whatsapp command %q", cmd)
	}

	payer := req.Caller
	if cmd == "pay" && len(args) >= 2 && phonePattern.MatchString(args[len(args)-1]) {
		payer = normalizePhone(args[len(args)-1])
		args = args[:len(args)-1]
	}

	plate := normalizePlate(strings.Join(args, ""))
	if !validPlate(plate) {
		return Response{}, &ValidationError{
			Reason: fmt.Sprintf("plate %q", strings.Join(args, " ")),
			Lines:  []string{fmt.Sprintf("%q is not a valid plate number.", strings.Join(args, " "))},
		}
	}

	switch cmd {
	case "time":
		return e.whatsAppTime(ctx, plate)
	case "amount":
		return e.whatsAppAmount(ctx, plate, req.Caller)
	default:
		return e.whatsAppPay(ctx, plate, payer)
	}
}

func (e *Engine) whatsAppTime(ctx context.Context, plate string) (Response, error) {
	_, q, err := e.quote(ctx, plate)
	if errors.Is(err, store.ErrNotFound) {
		return end(fmt.Sprintf("Vehicle %s not found.", plate)), nil
	}
	if err != nil {
		return Response{}, err
	}
	return end("You have stayed for: " + humanDuration(q.DurationMinutes)), nil
}

func (e *Engine) whatsAppAmount(ctx context.Context, plate, phone string) (Response, error) {
	e.linkPhone(ctx, plate, phone)
	_, q, err := e.quote(ctx, plate)
	if errors.Is(err, store.ErrNotFound) {
		return end(fmt.Sprintf("Vehicle %s not found.", plate)), nil
	}
	if err != nil {
		return Response{}, err
	}
	if q.Amount == 0 {
		return end(fmt.Sprintf("No charge for %s. Within free time.", plate)), nil
	}
	return end(fmt.Sprintf("Amount due for %s: KES %d", plate, q.Amount)), nil
}

func (e *Engine) whatsAppPay(ctx context.Context, plate, payer string) (Response, error) {
	e.linkPhone(ctx, plate, payer)
	_, q, err := e.quote(ctx, plate)
	if errors.Is(err, store.ErrNotFound) {
		return end(fmt.Sprintf("Vehicle %s not found.", plate)), nil
	}
	if err != nil {
		return Response{}, err
	}
	if q.Amount == 0 {
		return end(fmt.Sprintf("No charge for %s. You are within free %d mins, %d mins left to exit free.",
			plate, e.cfg.Tariff.DayFreeMinutes, e.cfg.Tariff.FreeMinutesLeft(q))), nil
	}

	p, err := e.pay(ctx, WhatsApp, plate, payer, q)
	if err != nil {
		return Response{}, err
	}
	resp := end(fmt.Sprintf("Payment request of KES %d sent to %s for %s. Check your phone for the M-Pesa prompt.",
		p.Amount, p.Phone, p.Plate))
	resp.Payment = p
	return resp, nil
}
