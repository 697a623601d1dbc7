package postgres

import "fuzzyclean/internal/storage"

func init() {
	// registers the value store factory
	storage.Register("postgres", New)
}
