package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/round-cube/parking-pay/messaging"
	"github.com/round-cube/parking-pay/pricing"
)

type Settings struct {
	httpPort        int
	ginMode         string
	logLevel        string
	ridgewaysDBURL  string
	rngDBURL        string
	dbMaxConns      int
	lookupTimeoutMs int
	timezone        string
	mpesaPushURL    string
	mpesaTimeoutS   int
	mpesaInsecure   bool
	infobip         messaging.Settings
	redisURL        string
	paymentLockTTLS int
	rmqURL          string
	paymentsQueue   string
	promPort        int
	promPath        string
	tariff          pricing.Tariff
}

func newSettings() (Settings, error) {
	var s Settings
	var err error

	s.ridgewaysDBURL, err = getEnv("RIDGEWAYS_DB_URL")
	if err != nil {
		return s, err
	}

	s.rngDBURL, err = getEnv("RNG_DB_URL")
	if err != nil {
		return s, err
	}

	s.httpPort = getEnvInt("HTTP_PORT", 8000)
	s.ginMode = getEnvDefault("GIN_MODE", "release")
	s.logLevel = getEnvDefault("LOG_LEVEL", "debug")
	s.dbMaxConns = getEnvInt("DB_MAX_CONNS", 10)
	s.lookupTimeoutMs = getEnvInt("LOOKUP_TIMEOUT_MS", 5000)
	s.timezone = getEnvDefault("TIMEZONE", "Africa/Nairobi")

	s.mpesaPushURL = getEnvDefault("MPESA_PUSH_URL", "https://ridgemall.syfe.co.ke/pushpayment/")
	s.mpesaTimeoutS = getEnvInt("MPESA_TIMEOUT_S", 15)
	s.mpesaInsecure = getEnvBool("MPESA_INSECURE_TLS", false)

	s.infobip = messaging.Settings{
		BaseURL:      getEnvDefault("INFOBIP_BASE_URL", "https://api.infobip.com"),
		APIKey:       getEnvDefault("INFOBIP_API_KEY", ""),
		Sender:       getEnvDefault("INFOBIP_SENDER", ""),
		TemplateName: getEnvDefault("INFOBIP_TEMPLATE_NAME", "parking_payment"),
		LogoURL:      getEnvDefault("INFOBIP_LOGO_URL", ""),
		Language:     getEnvDefault("INFOBIP_LANGUAGE", "en"),
		Timeout:      time.Duration(getEnvInt("INFOBIP_TIMEOUT_S", 10)) * time.Second,
	}

	s.redisURL = getEnvDefault("REDIS_URL", "")
	s.paymentLockTTLS = getEnvInt("PAYMENT_LOCK_TTL_S", 30)
	s.rmqURL = getEnvDefault("RMQ_URL", "")
	s.paymentsQueue = getEnvDefault("PAYMENTS_QUEUE_NAME", "payments")
	s.promPath = getEnvDefault("PROM_PATH", "/metrics")
	s.promPort = getEnvInt("PROM_PORT", 2112)

	def := pricing.DefaultTariff()
	if s.tariff.DayStart, err = getEnvClock("PRICING_DAY_START", def.DayStart); err != nil {
		return s, err
	}
	if s.tariff.DayEnd, err = getEnvClock("PRICING_DAY_END", def.DayEnd); err != nil {
		return s, err
	}
	s.tariff.DayFreeMinutes = getEnvInt("PRICING_DAY_FREE_MINUTES", def.DayFreeMinutes)
	s.tariff.DayIncludedMinutes = getEnvInt("PRICING_DAY_INCLUDED_MINUTES", def.DayIncludedMinutes)
	s.tariff.NightIncludedMinutes = getEnvInt("PRICING_NIGHT_INCLUDED_MINUTES", def.NightIncludedMinutes)
	s.tariff.BaseFee = getEnvInt("PRICING_BASE_FEE", def.BaseFee)
	s.tariff.HourlyFee = getEnvInt("PRICING_HOURLY_FEE", def.HourlyFee)
	if err := s.tariff.Validate(); err != nil {
		return s, fmt.Errorf("invalid tariff: %w", err)
	}

	return s, nil
}

func getEnv(key string) (string, error) {
	value, set := os.LookupEnv(key)
	if !set {
		return "", fmt.Errorf("environment variable must be set: %s", key)
	}
	return value, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value, set := os.LookupEnv(key); set {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, set := os.LookupEnv(key); set {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, set := os.LookupEnv(key); set {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvClock reads a "HH:MM" time of day as an offset from midnight.
func getEnvClock(key string, defaultValue time.Duration) (time.Duration, error) {
	value, set := os.LookupEnv(key)
	if !set {
		return defaultValue, nil
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be HH:MM: %w", key, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
