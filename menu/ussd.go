package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/round-cube/parking-pay/pricing"
	"github.com/round-cube/parking-pay/store"
)

// Action is the terminal behaviour of a menu node.
type Action string

const (
	ActionNone         Action = "none"
	ActionPay          Action = "pay"
	ActionAmountDue    Action = "amount_due"
	ActionTimeStayed   Action = "time_stayed"
	ActionTerms        Action = "terms"
	ActionUnrecognized Action = "unrecognized"
)

type argShape int

const (
	noArg argShape = iota
	plateArg
)

// Node is one entry of the USSD menu. Nodes with ActionNone list their
// children in Prompt; action nodes that take a plate show Prompt until one is given.
type Node struct {
	Prompt   []string
	Action   Action
	Facility pricing.Facility
	Arg      argShape
}

const ServiceCode = "98"

var enterPlate = []string{"Enter your Plate Number"}

// ussdMenu is keyed by code path. Every key except ServiceCode extends
// another key by one "*"-separated digit.
var ussdMenu = map[string]Node{
	"98": {
		Action: ActionNone,
		Prompt: []string{
			"Welcome to SyfePark USSD!",
			"By paying with USSD you agree with below terms",
			"1. Pay for Parking",
			"2. Check Amount Due",
			"3. Check Time Stayed",
			"4. Terms & Conditions",
			"Note: Vehicles managed by RNG (external) only support Amount checks via option 2.",
		},
	},
	"98*1": {Action: ActionPay, Arg: plateArg, Facility: pricing.Ridgeways, Prompt: enterPlate},
	"98*2": {Action: ActionAmountDue, Arg: plateArg, Facility: pricing.Ridgeways, Prompt: enterPlate},
	"98*3": {Action: ActionTimeStayed, Arg: plateArg, Facility: pricing.Ridgeways, Prompt: enterPlate},
	"98*4": {Action: ActionTerms},
	"98*9": {
		Action: ActionNone,
		Prompt: []string{
			"Welcome to RNG Parking",
			"2. Check Amount Due",
		},
	},
	"98*9*2": {Action: ActionAmountDue, Arg: plateArg, Facility: pricing.RNG, Prompt: enterPlate},
}

type ussdCall struct {
	req   Request
	path  string
	node  Node
	plate string
}

type ussdHandler func(e *Engine, ctx context.Context, call ussdCall) (Response, error)

var ussdHandlers = map[Action]ussdHandler{
	ActionPay:        (*Engine).ussdPay,
	ActionAmountDue:  (*Engine).ussdAmountDue,
	ActionTimeStayed: (*Engine).ussdTimeStayed,
	ActionTerms:      (*Engine).ussdTerms,
}

// resolveUSSD walks code one segment at a time until it reaches an action
// node. Segments left over after the action node are its arguments.
func resolveUSSD(code string) (string, Node, []string, error) {
	segs := strings.Split(code, "*")
	path := segs[0]
	node, ok := ussdMenu[path]
	if !ok {
		return path, Node{Action: ActionUnrecognized}, nil, unrecognized("ussd code %q", code)
	}

	i := 1
	for ; node.Action == ActionNone && i < len(segs); i++ {
		seg := segs[i]
		if !menuSelectorPattern.MatchString(seg) {
			return path, node, nil, &ValidationError{
				Reason: fmt.Sprintf("menu selector %q at %s", seg, path),
				Lines:  append([]string{"Invalid choice."}, node.Prompt...),
			}
		}
		next := path + "*" + seg
		child, ok := ussdMenu[next]
		if !ok {
			return next, Node{Action: ActionUnrecognized}, nil, unrecognized("ussd code %q", code)
		}
		path, node = next, child
	}
	return path, node, segs[i:], nil
}

func (e *Engine) handleUSSD(ctx context.Context, req Request) (Response, error) {
	path, node, args, err := resolveUSSD(normalizeUSSD(req.Input))
	if err != nil {
		return Response{}, err
	}
	if node.Action == ActionNone {
		return prompt(node.Prompt...), nil
	}
	h, ok := ussdHandlers[node.Action]
	if !ok {
		return Response{}, unrecognized("no handler for action %s at %s", node.Action, path)
	}

	call := ussdCall{req: req, path: path, node: node}
	if node.Arg == plateArg {
		if len(args) == 0 {
			return prompt(node.Prompt...), nil
		}
		if call.plate, err = plateFromArgs(path, args); err != nil {
			return Response{}, err
		}
	}
	return h(e, ctx, call)
}

func plateFromArgs(path string, args []string) (string, error) {
	if len(args) > 1 {
		return "", unrecognized("extra segments %q after %s", strings.Join(args, "*"), path)
	}
	plate := normalizePlate(args[0])
	if !validPlate(plate) {
		return "", &ValidationError{
			Reason: fmt.Sprintf("plate %q", args[0]),
			Lines:  append([]string{"Invalid plate number."}, enterPlate...),
		}
	}
	return plate, nil
}

func (e *Engine) ussdPay(ctx context.Context, call ussdCall) (Response, error) {
	plate := call.plate

	rng, err := e.isRNGVehicle(ctx, plate)
	if err != nil {
		return Response{}, err
	}
	if rng {
		return end("This vehicle is managed by RNG. Payments must be made via RNG services."), nil
	}

	e.linkPhone(ctx, plate, call.req.Caller)
	_, q, err := e.quote(ctx, plate)
	if errors.Is(err, store.ErrNotFound) {
		return end(msgVehicleNotFound), nil
	}
	if err != nil {
		return Response{}, err
	}
	if q.Amount == 0 {
		return end(fmt.Sprintf("You are within free %d mins. %d mins left to exit free.",
			e.cfg.Tariff.DayFreeMinutes, e.cfg.Tariff.FreeMinutesLeft(q))), nil
	}

	p, err := e.pay(ctx, USSD, plate, call.req.Caller, q)
	if err != nil {
		return Response{}, err
	}
	resp := end("Thank You for using Ridgeway's parking. You will receive an M-Pesa prompt shortly.")
	resp.Payment = p
	return resp, nil
}

func (e *Engine) ussdAmountDue(ctx context.Context, call ussdCall) (Response, error) {
	plate := call.plate

	if call.node.Facility == pricing.RNG {
		return e.rngAmountDue(ctx, plate)
	}

	rng, err := e.isRNGVehicle(ctx, plate)
	if err != nil {
		return Response{}, err
	}
	if rng {
		return e.rngAmountDue(ctx, plate)
	}

	e.linkPhone(ctx, plate, call.req.Caller)
	_, q, err := e.quote(ctx, plate)
	if errors.Is(err, store.ErrNotFound) {
		return end(msgVehicleNotFound), nil
	}
	if err != nil {
		return Response{}, err
	}
	if q.Amount == 0 {
		return end("No charge. Within free time."), nil
	}
	return end(fmt.Sprintf("Amount due: KES %d", q.Amount)), nil
}

// rngAmountDue answers from the RNG database's own fee function only.
func (e *Engine) rngAmountDue(ctx context.Context, plate string) (Response, error) {
	due, err := e.rngFeeDue(ctx, plate)
	if err != nil {
		return Response{}, err
	}
	if due == 0 {
		return end(fmt.Sprintf("No charge for %s. Within free time.", plate)), nil
	}
	return end(fmt.Sprintf("Your amount due for %s is KES %d", plate, due)), nil
}

func (e *Engine) ussdTimeStayed(ctx context.Context, call ussdCall) (Response, error) {
	plate := call.plate

	rng, err := e.isRNGVehicle(ctx, plate)
	if err != nil {
		return Response{}, err
	}
	if rng {
		return end("Time checks are not available for RNG-managed vehicles. Please contact RNG."), nil
	}

	_, q, err := e.quote(ctx, plate)
	if errors.Is(err, store.ErrNotFound) {
		return end(msgVehicleNotFound), nil
	}
	if err != nil {
		return Response{}, err
	}
	return end("Stayed for: " + humanDuration(q.DurationMinutes)), nil
}

func (e *Engine) ussdTerms(_ context.Context, _ ussdCall) (Response, error) {
	t := e.cfg.Tariff
	dayStart, dayEnd := clock(int(t.DayStart.Minutes())), clock(int(t.DayEnd.Minutes()))
	return end(
		"Ridgeways Mall Terms & Conditions",
		fmt.Sprintf("Day (%s-%s): first %d mins free, KES %d up to %s, then KES %d per extra hour.",
			dayStart, dayEnd, t.DayFreeMinutes, t.BaseFee, humanDuration(t.DayIncludedMinutes), t.HourlyFee),
		fmt.Sprintf("Night (%s-%s): KES %d up to %s, then KES %d per extra hour.",
			dayEnd, dayStart, t.BaseFee, humanDuration(t.NightIncludedMinutes), t.HourlyFee),
		"Fees follow the time you entered. Your phone number is used only to process parking payments.",
	), nil
}
