package repositories

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"

	"chat-relay/domain"
)

type ISearchIndex interface {
	Index(message domain.Message) error
	Search(ctx context.Context, text, user string, limit int) ([]SearchHit, error)
}

// SearchIndex is a Bluge-backed full-text index over relayed messages.
// It is strictly a secondary view: BadgerDB remains the source of truth and
// the index is rebuilt from it if lost.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

type SearchHit struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang"`
	At        time.Time `json:"at"`
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

func (s *SearchIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("sender", message.Sender).StoreValue()).
		AddField(bluge.NewKeywordField("recipient", message.Recipient).StoreValue()).
		AddField(bluge.NewKeywordField("lang", message.Lang).StoreValue()).
		AddField(bluge.NewDateTimeField("at", message.CreatedAt).StoreValue())
	return s.writer.Update(doc.ID(), doc)
}

// Search matches text against message content. A non-empty user restricts
// results to conversations that user took part in, on either side.
func (s *SearchIndex) Search(ctx context.Context, text, user string, limit int) ([]SearchHit, error) {
	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(text).SetField("content"))
	if user != "" {
		side := bluge.NewBooleanQuery().
			AddShould(bluge.NewTermQuery(user).SetField("sender")).
			AddShould(bluge.NewTermQuery(user).SetField("recipient"))
		side.SetMinShould(1)
		query.AddMust(side)
	}

	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("Failed to close index reader", "err", err)
		}
	}()

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	match, err := iterator.Next()
	for err == nil && match != nil {
		var hit SearchHit
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.ID = string(value)
			case "sender":
				hit.Sender = string(value)
			case "recipient":
				hit.Recipient = string(value)
			case "content":
				hit.Content = string(value)
			case "lang":
				hit.Lang = string(value)
			case "at":
				if at, err := bluge.DecodeDateTime(value); err == nil {
					hit.At = at
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}
