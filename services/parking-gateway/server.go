package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/round-cube/parking-pay/menu"
	"github.com/round-cube/parking-pay/messaging"
	"github.com/round-cube/parking-pay/shared"
	log "github.com/sirupsen/logrus"
)

var (
	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parking_pay_http_latency_seconds",
		Help:    "Time the gateway spends serving a webhook",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	OutboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_pay_outbound_messages_total",
		Help: "WhatsApp replies sent through Infobip by kind and result",
	}, []string{"kind", "result"})
)

type Handler interface {
	Handle(ctx context.Context, req menu.Request) menu.Response
}

type Messenger interface {
	SendText(ctx context.Context, to, text string) error
	SendPaymentTemplate(ctx context.Context, to string, amount int, phone, plate string) error
}

type Server struct {
	router    *gin.Engine
	handler   Handler
	messenger Messenger
}

func NewServer(handler Handler, messenger Messenger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	s := &Server{router: router, handler: handler, messenger: messenger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "parking-gateway"})
	})

	s.router.GET("/ussd", s.ussd)
	s.router.POST("/ussd", s.ussd)
	s.router.POST("/receivetext/", s.receiveText)
	s.router.GET("/twilio/ivr/", s.ivr)
	s.router.POST("/twilio/ivr/", s.ivr)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger tags every request with a REQ id and logs it once served.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id, err := shared.NewId("REQ")
		if err != nil {
			log.WithError(err).Warn("failed to generate request id")
		}
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		log.WithFields(log.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
		}).Debug("request served")
	}
}

// param returns the first of names present in the query string or form body.
func param(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v, ok := c.GetQuery(name); ok {
			return v
		}
		if v, ok := c.GetPostForm(name); ok {
			return v
		}
	}
	return ""
}

func (s *Server) ussd(c *gin.Context) {
	req := menu.Request{
		Channel: menu.USSD,
		Input:   param(c, "INPUT", "TEXT", "text", "input"),
		Caller:  param(c, "MSISDN", "msisdn", "From", "phoneNumber"),
	}
	resp := s.handler.Handle(c.Request.Context(), req)
	c.String(http.StatusOK, resp.USSD())
}

func (s *Server) receiveText(c *gin.Context) {
	var payload messaging.InboundPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.WithError(err).Warn("failed to decode inbound whatsapp payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	ctx := c.Request.Context()
	for _, m := range payload.Results {
		if m.Message.Type != "" && !strings.EqualFold(m.Message.Type, "TEXT") {
			log.WithFields(log.Fields{"from": m.From, "type": m.Message.Type}).Debug("ignoring non-text whatsapp message")
			continue
		}
		resp := s.handler.Handle(ctx, menu.Request{Channel: menu.WhatsApp, Input: m.Message.Text, Caller: m.From})
		s.reply(ctx, m.From, resp)
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// reply confirms accepted payments with the branded template and answers
// everything else with plain text. Send failures are logged only.
func (s *Server) reply(ctx context.Context, to string, resp menu.Response) {
	kind := "text"
	var err error
	if p := resp.Payment; p != nil {
		kind = "template"
		err = s.messenger.SendPaymentTemplate(ctx, to, p.Amount, p.Phone, p.Plate)
	} else {
		err = s.messenger.SendText(ctx, to, resp.Text())
	}
	if err != nil {
		OutboundMessages.WithLabelValues(kind, "error").Inc()
		log.WithFields(log.Fields{"to": to, "kind": kind}).WithError(err).Error("failed to send whatsapp reply")
		return
	}
	OutboundMessages.WithLabelValues(kind, "sent").Inc()
}

func (s *Server) ivr(c *gin.Context) {
	req := menu.Request{
		Channel: menu.IVR,
		Input:   param(c, "Digits"),
		Caller:  param(c, "From"),
	}
	resp := s.handler.Handle(c.Request.Context(), req)
	body, err := renderTwiML(resp)
	if err != nil {
		log.WithError(err).Error("failed to render twiml")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", body)
}
