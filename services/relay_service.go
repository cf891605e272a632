//go:generate go run go.uber.org/mock/mockgen -source=relay_service.go -destination=../mocks/mock_relay_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chat-relay/contract"
	"chat-relay/domain"
	relayerrors "chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
)

var validate = validator.New()

type IRelayService interface {
	Bootstrap(userID1, userID2 string) (string, error)
	Relay(ctx context.Context, sessionID, senderID, content string, replyTo *string)
	History(userA, userB string, limit int, before *time.Time) ([]domain.Message, error)
	Search(ctx context.Context, text, user string, limit int) ([]repositories.SearchHit, error)
}

// RelayService implements the relay semantics on top of the registry and the
// persistence layer. It holds no state of its own.
type RelayService struct {
	log          *slog.Logger
	registry     contract.IRegistry
	store        repositories.IMessageRepository
	index        repositories.ISearchIndex
	moderator    *moderation.Moderator
	monitoring   *observability.MonitoringManager
	defaultLimit int
}

func NewRelayService(log *slog.Logger, registry contract.IRegistry,
	store repositories.IMessageRepository, index repositories.ISearchIndex,
	moderator *moderation.Moderator, monitoring *observability.MonitoringManager,
	defaultLimit int) *RelayService {
	return &RelayService{
		log:          log,
		registry:     registry,
		store:        store,
		index:        index,
		moderator:    moderator,
		monitoring:   monitoring,
		defaultLimit: defaultLimit,
	}
}

type bootstrapRequest struct {
	UserID1 string `validate:"required,nefield=UserID2"`
	UserID2 string `validate:"required"`
}

// Bootstrap allocates or retrieves the session id for a pair of users.
// Idempotent in either argument order. No authentication happens here; the
// caller is assumed already identified.
func (s *RelayService) Bootstrap(userID1, userID2 string) (string, error) {
	if err := validate.Struct(bootstrapRequest{UserID1: userID1, UserID2: userID2}); err != nil {
		return "", fmt.Errorf("%w: %v", relayerrors.ErrInvalidArgument, err)
	}
	sessionID, created := s.registry.CreateOrGetSession(userID1, userID2)
	if created {
		s.monitoring.IncrSessions()
	}
	return sessionID, nil
}

// Relay handles one message frame from a joined connection.
//
// The timestamp is assigned once, before anything else happens, and is the
// one carried by the fan-out frames, the notification frame and the persisted
// record alike. Persistence is fire and forget: delivery to live sockets is
// prioritized over durability, and a store failure is logged and counted but
// never surfaced to the sender.
func (s *RelayService) Relay(ctx context.Context, sessionID, senderID, content string, replyTo *string) {
	recipientID, hasRecipient := s.registry.Peer(sessionID, senderID)

	now := time.Now().UTC()
	censored := s.moderator.Censor(content)

	message := domain.Message{
		ID:        uuid.New(),
		Sender:    senderID,
		Recipient: recipientID,
		Content:   censored,
		ReplyTo:   replyTo,
		Lang:      whatlanggo.LangToString(whatlanggo.DetectLang(censored)),
		CreatedAt: now,
	}

	// Not tied to the frame's context: the write must survive the sender
	// disconnecting right after the frame was read.
	go s.persist(message)

	frame := domain.EncodeFrame(domain.NewMessageEvent(senderID, censored, replyTo, now))
	notified := make(map[string]struct{})
	for _, c := range s.registry.SessionConns(sessionID) {
		if !c.TrySend(frame) {
			s.evict(c)
			continue
		}
		notified[c.ID()] = struct{}{}
	}

	if hasRecipient {
		if target, ok := s.registry.RegisteredConn(recipientID); ok {
			if _, alreadySent := notified[target.ID()]; !alreadySent {
				notification := domain.EncodeFrame(domain.NewNotification(senderID, censored, replyTo, now))
				if target.TrySend(notification) {
					s.monitoring.IncrNotificationsSent()
				} else {
					s.evict(target)
				}
			}
		}
	}

	s.monitoring.IncrMessagesRelayed()
}

// persist writes the message to the store and the search index.
// Failures do not abort relay; the message was already delivered live.
func (s *RelayService) persist(message domain.Message) {
	if err := s.store.Save(message); err != nil {
		s.monitoring.IncrStoreFailures()
		s.log.Error("Message lost for history",
			"message_id", message.ID.String(),
			"sender", message.Sender,
			"err", fmt.Errorf("%w: %v", relayerrors.ErrStoreUnavailable, err))
		return
	}
	if err := s.index.Index(message); err != nil {
		s.log.Warn("Message not indexed for search",
			"message_id", message.ID.String(), "err", err)
	}
}

// evict applies the dead-connection remediation to a socket whose backlog
// overflowed: same path as a failed liveness probe.
func (s *RelayService) evict(c contract.Conn) {
	s.log.Warn("Send backlog overflow, evicting connection",
		"conn_id", c.ID(), "user_id", c.UserID())
	s.monitoring.IncrDroppedFrames()
	s.registry.Remove(c)
	c.Close()
	s.monitoring.IncrConnectionsPruned()
}

// History returns persisted messages between two users, oldest first.
// Direction-agnostic: both (userA,userB) and (userB,userA) match.
func (s *RelayService) History(userA, userB string, limit int, before *time.Time) ([]domain.Message, error) {
	if userA == "" || userB == "" {
		return nil, fmt.Errorf("%w: both user ids are required", relayerrors.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	return s.store.FindBetween(userA, userB, limit, before)
}

// Search runs a full-text query over the message index.
func (s *RelayService) Search(ctx context.Context, text, user string, limit int) ([]repositories.SearchHit, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: query text is required", relayerrors.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	return s.index.Search(ctx, text, user, limit)
}
