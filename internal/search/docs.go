package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/example/guildsync/internal/models"
)

type EventDoc struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Game        string    `json:"game"`
	State       string    `json:"state"`
	SignupCount int       `json:"signup_count"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func BuildEventDoc(ev *models.Event, gameName string, state models.EmbedState, signupCount int) ([]byte, error) {
	return json.Marshal(EventDoc{
		Title:       ev.Title,
		Description: ev.Description,
		Game:        gameName,
		State:       string(state),
		SignupCount: signupCount,
		StartAt:     ev.StartAt,
		EndAt:       ev.EndAt,
		UpdatedAt:   time.Now(),
	})
}

// Indexer mirrors event documents into the search index. A nil Indexer is
// valid and indexes nothing, so the reconciler can run without Elasticsearch.
type Indexer struct {
	ES *es.Client
}

func (i *Indexer) IndexEvent(ctx context.Context, ev *models.Event, gameName string, state models.EmbedState, signupCount int) error {
	if i == nil || i.ES == nil {
		return nil
	}
	doc, err := BuildEventDoc(ev, gameName, state, signupCount)
	if err != nil {
		return err
	}
	res, err := i.ES.Index(IdxEvents,
		bytes.NewReader(doc),
		i.ES.Index.WithDocumentID(ev.ID.String()),
		i.ES.Index.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index event %s: %s", ev.ID, res.String())
	}
	return nil
}
