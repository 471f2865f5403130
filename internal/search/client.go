package search

import (
	es "github.com/elastic/go-elasticsearch/v8"
)

func Connect(url string) (*es.Client, error) {
	cfg := es.Config{
		Addresses: []string{url},
	}
	return es.NewClient(cfg)
}
