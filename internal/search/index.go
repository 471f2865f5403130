package search

import (
	"bytes"
	"context"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"
)

const IdxEvents = "events_v1"

func EnsureIndex(ctx context.Context, c *es.Client) error {
	mapping := `{"settings":{"number_of_shards":1},"mappings":{"dynamic":"strict","properties":{
		"title":{"type":"text"},"description":{"type":"text"},"game":{"type":"keyword"},
		"state":{"type":"keyword"},"signup_count":{"type":"integer"},
		"start_at":{"type":"date"},"end_at":{"type":"date"},"updated_at":{"type":"date"}
	}}}`
	return ensure(ctx, c, IdxEvents, mapping)
}

func ensure(ctx context.Context, c *es.Client, index, body string) error {
	exists, err := c.Indices.Exists([]string{index}, c.Indices.Exists.WithContext(ctx))
	if err == nil && exists.StatusCode == 200 {
		return nil
	}
	res, err := c.Indices.Create(index,
		c.Indices.Create.WithBody(bytes.NewBufferString(body)),
		c.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()
	return nil
}
