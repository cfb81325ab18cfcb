// Package sms delivers verification codes to recipients' phones.
package sms

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/config"
)

// Message is one outbound text.
type Message struct {
	To        string `json:"to"`
	Body      string `json:"body"`
	SenderID  string `json:"sender_id,omitempty"`
	Reference string `json:"reference"`
}

// Sender hands messages to the SMS gateway.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrRejected is returned when the channel refuses a message outright.
var ErrRejected = errors.New("sms rejected")

// Module provides the configured sender to Fx.
var Module = fx.Provide(NewSender)

// NewSender builds the sender selected by configuration.
func NewSender(cfg config.Config, logger *zap.Logger) (Sender, error) {
	switch cfg.SMS.Driver {
	case "noop":
		return noopSender{}, nil
	case "log":
		return &logSender{logger: logger, senderID: cfg.SMS.SenderID}, nil
	case "sqs":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.SMS.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewQueueSender(sqs.NewFromConfig(awsCfg), cfg.SMS.QueueURL, cfg.SMS.SenderID), nil
	default:
		return nil, fmt.Errorf("unsupported sms driver: %s", cfg.SMS.Driver)
	}
}

type noopSender struct{}

func (noopSender) Send(context.Context, Message) error { return nil }

// logSender writes messages to the log instead of a gateway, for local runs.
type logSender struct {
	logger   *zap.Logger
	senderID string
}

func (l *logSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("%w: empty recipient", ErrRejected)
	}
	l.logger.Info("sms dispatched",
		zap.String("to", msg.To),
		zap.String("sender_id", l.senderID),
		zap.String("reference", msg.Reference),
	)
	return nil
}
