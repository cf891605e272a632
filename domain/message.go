// Package domain contains core concepts of the relay.
// This file defines Message records and related rules.
// Messages are immutable once created and never updated or deleted here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents one relayed chat message, as persisted.
type Message struct {
	ID        uuid.UUID
	Sender    string
	Recipient string
	Content   string
	ReplyTo   *string // id of the message being answered, nil otherwise
	Lang      string  // ISO 639-3 code detected from the content
	CreatedAt time.Time
}
