package menu

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/round-cube/parking-pay/store"
)

// MaxIVRVehicles is bounded by the single keypad digit a caller can press.
const MaxIVRVehicles = 9

// handleIVR lists the caller's vehicles when no digits were sent, otherwise
// pays for the vehicle at the pressed position.
func (e *Engine) handleIVR(ctx context.Context, req Request) (Response, error) {
	var plates []string
	err := e.lookup(ctx, "linked_vehicles", func(ctx context.Context) error {
		var err error
		plates, err = e.vehicles.LinkedVehicles(ctx, req.Caller, MaxIVRVehicles)
		return err
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Response{}, err
	}
	if len(plates) > MaxIVRVehicles {
		plates = plates[:MaxIVRVehicles]
	}

	digits := strings.TrimSpace(req.Input)
	if digits == "" {
		if len(plates) == 0 {
			return end("No vehicles linked to your number. Use USSD to pay. Goodbye."), nil
		}
		lines := []string{"Welcome to Ridgeways Parking Payment. Select your vehicle."}
		for i, plate := range plates {
			lines = append(lines, fmt.Sprintf("For %s, press %d.", plate, i+1))
		}
		return prompt(lines...), nil
	}

	choice, err := strconv.Atoi(digits)
	if err != nil || len(digits) != 1 {
		return Response{}, &ValidationError{Reason: fmt.Sprintf("digits %q", digits), Lines: []string{"Invalid input."}}
	}
	if choice < 1 || choice > len(plates) {
		return Response{}, &ValidationError{
			Reason: fmt.Sprintf("selection %d of %d vehicles", choice, len(plates)),
			Lines:  []string{"Invalid selection."},
		}
	}

	plate := normalizePlate(plates[choice-1])
	_, q, err := e.quote(ctx, plate)
	if errors.Is(err, store.ErrNotFound) {
		return end("We could not find a parking record for " + plate + ". Goodbye."), nil
	}
	if err != nil {
		return Response{}, err
	}
	if q.Amount == 0 {
		return end("You are within free parking time. No payment needed."), nil
	}

	p, err := e.pay(ctx, IVR, plate, req.Caller, q)
	if err != nil {
		return Response{}, err
	}
	resp := end(fmt.Sprintf("Payment request sent for %s. Check your phone for M-Pesa prompt. Thank you!", plate))
	resp.Payment = p
	return resp, nil
}
