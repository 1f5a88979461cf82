package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/garusis/marcos-assistant/internal/whatsapp"
	"github.com/garusis/marcos-assistant/pkg/logging"
)

// ActorUser tags records written by this pipeline; the downstream processor
// writes its own records with a different actor.
const ActorUser = "user"

// placeholderName is stored when a first-time sender arrives without a
// profile in the event's contact list.
const placeholderName = "Anonimo"

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Contact is a resolved sender identity, keyed by the opaque external
// sender ID.
type Contact struct {
	ContactID string `dynamodbav:"contactId" json:"contactId"`
	Name      string `dynamodbav:"name" json:"name"`
}

// MessageRecord is the stored form of one inbound message. The external
// message ID is the table key, so webhook re-deliveries overwrite instead
// of duplicating.
type MessageRecord struct {
	MessageID string `dynamodbav:"messageId" json:"messageId"`
	ContactID string `dynamodbav:"contactId" json:"contactId"`
	Text      string `dynamodbav:"text" json:"text"`
	Timestamp int64  `dynamodbav:"timestamp" json:"timestamp"`
	Actor     string `dynamodbav:"actor" json:"actor"`
}

// Store persists contacts and message history to DynamoDB.
type Store struct {
	client        dynamoAPI
	contactsTable string
	messagesTable string
	logger        *logging.Logger
	now           func() time.Time
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, contactsTable, messagesTable string, logger *logging.Logger) *Store {
	if client == nil {
		panic("history: dynamodb client cannot be nil")
	}
	if contactsTable == "" || messagesTable == "" {
		panic("history: table names cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:        client,
		contactsTable: contactsTable,
		messagesTable: messagesTable,
		logger:        logger,
		now:           time.Now,
	}
}

// ResolveContact returns the contact stored for senderID, creating it on
// first sight. A brand-new contact takes its display name from the event's
// contact list when the sender appears there. Concurrent first-contact
// events race on the unconditional put; last write wins on the name, which
// is acceptable because the key never changes.
func (s *Store) ResolveContact(ctx context.Context, senderID string, contacts []whatsapp.WebhookContact) (*Contact, error) {
	if senderID == "" {
		return nil, errors.New("history: sender id required")
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.contactsTable),
		Key: map[string]types.AttributeValue{
			"contactId": &types.AttributeValueMemberS{Value: senderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: failed to look up contact: %w", err)
	}
	if len(out.Item) > 0 {
		var existing Contact
		if err := attributevalue.UnmarshalMap(out.Item, &existing); err != nil {
			return nil, fmt.Errorf("history: failed to unmarshal contact: %w", err)
		}
		return &existing, nil
	}

	name := placeholderName
	for _, contact := range contacts {
		if contact.WaID == senderID {
			if contact.Profile.Name != "" {
				name = contact.Profile.Name
			}
			break
		}
	}

	created := &Contact{ContactID: senderID, Name: name}
	item, err := attributevalue.MarshalMap(created)
	if err != nil {
		return nil, fmt.Errorf("history: failed to marshal contact: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.contactsTable),
		Item:      item,
	}); err != nil {
		return nil, fmt.Errorf("history: failed to persist contact: %w", err)
	}

	s.logger.Info("contact created", "contact_id", senderID, "name", name)
	return created, nil
}

// Append resolves the sender and stores the extracted text as an immutable
// message record keyed by the message's external ID.
func (s *Store) Append(ctx context.Context, msg whatsapp.InboundMessage, text string, contacts []whatsapp.WebhookContact) (*MessageRecord, error) {
	if msg.ID == "" {
		return nil, errors.New("history: message id required")
	}

	contact, err := s.ResolveContact(ctx, msg.From, contacts)
	if err != nil {
		return nil, err
	}

	record := &MessageRecord{
		MessageID: msg.ID,
		ContactID: contact.ContactID,
		Text:      text,
		Timestamp: s.now().UTC().UnixMilli(),
		Actor:     ActorUser,
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("history: failed to marshal message: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.messagesTable),
		Item:      item,
	}); err != nil {
		return nil, fmt.Errorf("history: failed to persist message: %w", err)
	}

	return record, nil
}
