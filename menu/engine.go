// Package menu answers USSD, WhatsApp and IVR requests for parking payments.
//
// The engine keeps no session state. A USSD session is rebuilt on every
// request from the accumulated code path, WhatsApp messages are independent
// commands, and an IVR selection is resolved against the caller's linked
// vehicles looked up again on each call. Faults from collaborators never reach
// the channel: Handle translates them into one of a few fixed messages.
package menu

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/round-cube/parking-pay/payments"
	"github.com/round-cube/parking-pay/pricing"
	"github.com/round-cube/parking-pay/shared"
	"github.com/round-cube/parking-pay/store"
	log "github.com/sirupsen/logrus"
)

type Channel string

const (
	USSD     Channel = "ussd"
	WhatsApp Channel = "whatsapp"
	IVR      Channel = "ivr"
)

type Request struct {
	Channel Channel
	Input   string
	Caller  string
}

// Payment describes a push request the payment collaborator accepted.
type Payment struct {
	Plate     string
	Phone     string
	Amount    int
	Reference string
	Facility  pricing.Facility
}

type Response struct {
	Continue bool
	Lines    []string
	Payment  *Payment
}

func (r Response) Text() string {
	return strings.Join(r.Lines, "\n")
}

// USSD renders r in the gateway protocol: "CON " keeps the session open, "END " closes it.
func (r Response) USSD() string {
	if r.Continue {
		return "CON " + r.Text()
	}
	return "END " + r.Text()
}

type Vehicles interface {
	LatestVisit(ctx context.Context, plate string) (store.Vehicle, error)
	LinkPhone(ctx context.Context, plate, phone string) error
	LinkedVehicles(ctx context.Context, phone string, limit int) ([]string, error)
	IsRNGVehicle(ctx context.Context, plate string) (bool, error)
	RNGFeeDue(ctx context.Context, plate string) (int, error)
}

type EventPublisher interface {
	PublishPayment(ctx context.Context, e shared.PaymentRequested) error
}

type Config struct {
	Tariff        pricing.Tariff
	LookupTimeout time.Duration
}

type Deps struct {
	Vehicles Vehicles
	Payments payments.Trigger
	// Events is optional.
	Events EventPublisher
	Logger *log.Logger
	Clock  func() time.Time
}

type Engine struct {
	cfg      Config
	vehicles Vehicles
	payments payments.Trigger
	events   EventPublisher
	logger   *log.Logger
	now      func() time.Time
}

const defaultLookupTimeout = 5 * time.Second

func NewEngine(cfg Config, deps Deps) *Engine {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	e := &Engine{
		cfg:      cfg,
		vehicles: deps.Vehicles,
		payments: deps.Payments,
		events:   deps.Events,
		logger:   deps.Logger,
		now:      deps.Clock,
	}
	if e.logger == nil {
		e.logger = log.StandardLogger()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) Handle(ctx context.Context, req Request) Response {
	start := time.Now()
	req.Caller = normalizePhone(req.Caller)

	var resp Response
	var err error
	switch req.Channel {
	case USSD:
		resp, err = e.handleUSSD(ctx, req)
	case WhatsApp:
		resp, err = e.handleWhatsApp(ctx, req)
	case IVR:
		resp, err = e.handleIVR(ctx, req)
	default:
		err = unrecognized("channel %q", req.Channel)
	}

	outcome := "end"
	if err != nil {
		resp, outcome = e.translate(req, err)
	} else if resp.Continue {
		outcome = "continue"
	}

	Responses.WithLabelValues(string(req.Channel), outcome).Inc()
	RequestLatency.WithLabelValues(string(req.Channel)).Observe(time.Since(start).Seconds())
	return resp
}

const (
	msgGenericError    = "An error occurred. Please try again."
	msgPaymentFailed   = "Unable to process payment, please try again"
	msgVehicleNotFound = "Vehicle not found!"
)

var genericErrors = map[Channel][]string{
	USSD:     {msgGenericError},
	WhatsApp: {"Sorry, we could not process your request. Please try again."},
	IVR:      {"Sorry, an error occurred. Please try again later. Goodbye."},
}

var unrecognizedReplies = map[Channel][]string{
	USSD:     {msgGenericError},
	WhatsApp: whatsAppHelp,
	IVR:      {"Invalid selection."},
}

func replyFor(table map[Channel][]string, ch Channel) []string {
	if lines, ok := table[ch]; ok {
		return lines
	}
	return []string{msgGenericError}
}

// translate is the only place internal errors become user-facing text.
func (e *Engine) translate(req Request, err error) (Response, string) {
	entry := e.logger.WithFields(log.Fields{
		"channel": req.Channel,
		"caller":  req.Caller,
		"input":   req.Input,
	})

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		entry.WithField("reason", verr.Reason).Debug("invalid input")
		return Response{Continue: req.Channel == USSD, Lines: verr.Lines}, "validation"
	case errors.Is(err, ErrUnrecognized):
		entry.Debugf("unrecognized input: %s", err)
		return Response{Lines: replyFor(unrecognizedReplies, req.Channel)}, "unrecognized"
	case errors.Is(err, ErrPaymentRejected):
		entry.Warnf("payment not accepted: %s", err)
		return Response{Lines: []string{msgPaymentFailed}}, "payment_rejected"
	case errors.Is(err, ErrLookup):
		entry.WithError(err).Error("lookup failed")
		return Response{Lines: replyFor(genericErrors, req.Channel)}, "lookup_failure"
	default:
		entry.WithError(err).Error("request failed")
		return Response{Lines: replyFor(genericErrors, req.Channel)}, "error"
	}
}

// lookup bounds a collaborator call by the lookup timeout. Not-found passes
// through unchanged; any other failure becomes a LookupError.
func (e *Engine) lookup(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.LookupTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	LookupLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err == nil || errors.Is(err, store.ErrNotFound) {
		return err
	}
	return &LookupError{Op: op, Err: err}
}

// quote prices the latest Ridgeways visit of plate up to its exit, or now.
func (e *Engine) quote(ctx context.Context, plate string) (store.Vehicle, pricing.Result, error) {
	var v store.Vehicle
	err := e.lookup(ctx, "latest_visit", func(ctx context.Context) error {
		var err error
		v, err = e.vehicles.LatestVisit(ctx, plate)
		return err
	})
	if err != nil {
		return store.Vehicle{}, pricing.Result{}, err
	}
	facility := v.Facility
	if facility == "" {
		facility = pricing.Ridgeways
	}
	return v, e.cfg.Tariff.Price(v.EntryTime, v.ExitOr(e.now()), facility), nil
}

func (e *Engine) isRNGVehicle(ctx context.Context, plate string) (bool, error) {
	var rng bool
	err := e.lookup(ctx, "rng_ownership", func(ctx context.Context) error {
		var err error
		rng, err = e.vehicles.IsRNGVehicle(ctx, plate)
		return err
	})
	return rng, err
}

func (e *Engine) rngFeeDue(ctx context.Context, plate string) (int, error) {
	var due int
	err := e.lookup(ctx, "rng_fee_due", func(ctx context.Context) error {
		var err error
		due, err = e.vehicles.RNGFeeDue(ctx, plate)
		return err
	})
	return due, err
}

// linkPhone records who asked about a vehicle. It never fails the request.
func (e *Engine) linkPhone(ctx context.Context, plate, phone string) {
	if phone == "" {
		return
	}
	err := e.lookup(ctx, "link_phone", func(ctx context.Context) error {
		return e.vehicles.LinkPhone(ctx, plate, phone)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.logger.WithFields(log.Fields{"vehicle_plate": plate, "phone": phone}).
			WithError(err).Warn("failed to link phone to vehicle")
	}
}

func (e *Engine) pay(ctx context.Context, ch Channel, plate, phone string, q pricing.Result) (*Payment, error) {
	if phone == "" {
		return nil, &ValidationError{Reason: "missing payer phone", Lines: []string{"A phone number is required to pay."}}
	}

	res, err := e.payments.Trigger(ctx, payments.Request{Plate: plate, Phone: phone, Amount: q.Amount})
	if err != nil {
		PaymentTriggers.WithLabelValues(string(ch), "error").Inc()
		return nil, errors.Join(ErrPaymentRejected, err)
	}
	if !res.Accepted {
		PaymentTriggers.WithLabelValues(string(ch), "rejected").Inc()
		return nil, ErrPaymentRejected
	}
	PaymentTriggers.WithLabelValues(string(ch), "accepted").Inc()

	p := &Payment{Plate: plate, Phone: phone, Amount: q.Amount, Reference: res.Reference, Facility: q.Facility}
	e.logger.WithFields(log.Fields{
		"channel":       ch,
		"vehicle_plate": plate,
		"phone":         phone,
		"amount":        q.Amount,
		"reference":     res.Reference,
	}).Info("payment requested")
	e.publish(ctx, ch, p)
	return p, nil
}

func (e *Engine) publish(ctx context.Context, ch Channel, p *Payment) {
	if e.events == nil {
		return
	}
	evt, err := shared.NewPaymentRequested(p.Plate, p.Phone, p.Amount, p.Reference, string(ch), string(p.Facility))
	if err == nil {
		err = e.events.PublishPayment(ctx, evt)
	}
	if err != nil {
		e.logger.WithField("vehicle_plate", p.Plate).WithError(err).Warn("failed to publish payment event")
	}
}

func prompt(lines ...string) Response {
	return Response{Continue: true, Lines: lines}
}

func end(lines ...string) Response {
	return Response{Lines: lines}
}
