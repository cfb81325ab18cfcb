package sms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// QueueAPI is the subset of the SQS client used to enqueue messages.
type QueueAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueueSender enqueues messages on SQS for the SMS gateway to pick up.
type QueueSender struct {
	client   QueueAPI
	queueURL string
	senderID string
}

// NewQueueSender returns a sender bound to queueURL.
func NewQueueSender(client QueueAPI, queueURL, senderID string) *QueueSender {
	return &QueueSender{client: client, queueURL: queueURL, senderID: senderID}
}

// Send serialises msg as JSON and enqueues it with the reference as an attribute.
func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("%w: empty recipient", ErrRejected)
	}
	if msg.SenderID == "" {
		msg.SenderID = q.senderID
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal sms: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"reference": {DataType: aws.String("String"), StringValue: aws.String(msg.Reference)},
		},
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
