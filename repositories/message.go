//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/domain"
)

type IMessageRepository interface {
	Save(message domain.Message) error
	FindBetween(userA, userB string, limit int, before *time.Time) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// record is the on-disk shape of a message.
type record struct {
	ID        string  `json:"id"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Content   string  `json:"content"`
	ReplyTo   *string `json:"replyTo"`
	Lang      string  `json:"lang"`
	At        int64   `json:"at"` // UnixNano
}

// conversationPrefix builds the direction-agnostic key prefix for a user pair.
// The pair is sorted so (alice,bob) and (bob,alice) land on the same prefix.
func conversationPrefix(userA, userB string) string {
	first, second := userA, userB
	if strings.Compare(first, second) > 0 {
		first, second = second, first
	}
	return fmt.Sprintf("msg:%s|%s:", first, second)
}

// Save persists a message in BadgerDB.
// The key is formatted as "msg:{lo}|{hi}:{timestamp_padded}:{uuid}" to:
//  1. Group both directions of a conversation under one prefix.
//  2. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  3. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) Save(message domain.Message) error {
	key := fmt.Sprintf("%s%019d:%s",
		conversationPrefix(message.Sender, message.Recipient),
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// FindBetween retrieves up to limit messages exchanged between two users,
// walking the conversation prefix backwards from the "before" bound (exclusive)
// so the newest messages win under the limit, then returning them oldest-first.
func (m MessageRepository) FindBetween(userA, userB string, limit int, before *time.Time) ([]domain.Message, error) {
	var raw [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(conversationPrefix(userA, userB))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch before {
		case nil:
			// Start past any possible timestamp and walk back.
			seekKey = append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		default:
			// A bare padded timestamp sorts below every real key carrying
			// that timestamp, so the bound is exclusive by construction.
			seekKey = append(append([]byte{}, prefix...), []byte(fmt.Sprintf("%019d", before.UnixNano()))...)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(raw) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse iteration produced newest-first; callers always get oldest-first.
	messages := make([]domain.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var rec record
		if err = json.Unmarshal(raw[i], &rec); err != nil {
			return nil, err
		}
		message, err := toMessage(rec)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func fromMessage(message domain.Message) record {
	return record{
		ID:        message.ID.String(),
		Sender:    message.Sender,
		Recipient: message.Recipient,
		Content:   message.Content,
		ReplyTo:   message.ReplyTo,
		Lang:      message.Lang,
		At:        message.CreatedAt.UnixNano(),
	}
}

func toMessage(rec record) (domain.Message, error) {
	parsedID, err := uuid.Parse(rec.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		Sender:    rec.Sender,
		Recipient: rec.Recipient,
		Content:   rec.Content,
		ReplyTo:   rec.ReplyTo,
		Lang:      rec.Lang,
		CreatedAt: time.Unix(0, rec.At).UTC(),
	}, nil
}

// DecodeRecord parses a stored value back into a Message, used by the inspect
// tool which walks raw keys.
func DecodeRecord(value []byte) (domain.Message, error) {
	var rec record
	if err := json.Unmarshal(value, &rec); err != nil {
		return domain.Message{}, err
	}
	return toMessage(rec)
}

// ToRecordsByConversation groups messages per conversation prefix, used by the
// inspect tool.
func ToRecordsByConversation(messages []domain.Message) map[string][]domain.Message {
	return lo.GroupBy(messages, func(item domain.Message) string {
		return conversationPrefix(item.Sender, item.Recipient)
	})
}
