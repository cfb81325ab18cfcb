package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 73*time.Hour, cfg.Workflow.PaymentExpiry)
	assert.Equal(t, 2*time.Hour, cfg.Workflow.SweepInterval)
	assert.Equal(t, 6, cfg.Verification.CodeLength)
	assert.Equal(t, 24*time.Hour, cfg.Verification.CodeTTL)
	assert.Equal(t, "log", cfg.SMS.Driver)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
}

func TestNewDisablesCacheAndMessaging(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_ENABLED", "false")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
}

func TestNewRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"sms driver":      {"SMS_DRIVER": "carrier-pigeon"},
		"sqs without url": {"SMS_DRIVER": "sqs"},
		"code length":     {"VERIFICATION_CODE_LENGTH": "2"},
		"payment expiry":  {"WORKFLOW_PAYMENT_EXPIRY": "-1h"},
		"http port":       {"HTTP_PORT": "0"},
		"sample ratio":    {"OBS_TRACE_SAMPLE_RATIO": "1.5"},
		"wallet currency": {"WALLET_DEFAULT_CURRENCY": "RUPIAH"},
		"credit limit":    {"WALLET_DEFAULT_CREDIT_LIMIT": "-10"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestEnvParsing(t *testing.T) {
	t.Setenv("WORKFLOW_PAYMENT_EXPIRY", "48")
	t.Setenv("VERIFICATION_CODE_TTL", "  ")
	t.Setenv("WORKFLOW_SWEEP_BATCH_SIZE", "1_000")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("WALLET_DEFAULT_CURRENCY", "usd")
	t.Setenv("WALLET_DEFAULT_CREDIT_LIMIT", "250000.50")
	t.Setenv("OBS_TRACE_SAMPLE_RATIO", "0.25")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.Workflow.PaymentExpiry)
	assert.Equal(t, 24*time.Hour, cfg.Verification.CodeTTL)
	assert.Equal(t, 1000, cfg.Workflow.SweepBatchSize)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Messaging.Kafka.Brokers)
	assert.Equal(t, "USD", cfg.Wallet.DefaultCurrency)
	assert.Equal(t, "250000.5", cfg.Wallet.DefaultCreditLimit.String())
	assert.Equal(t, 0.25, cfg.Observability.TraceSampling)
}
