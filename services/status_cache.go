package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docsearch-platform/models"

	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix = "ingest:status:"
	statusTTL       = 24 * time.Hour
)

// IngestStatus is the cached, caller-visible state of one document's
// ingestion. It exists so status polling never touches Mongo.
type IngestStatus struct {
	DocumentID string               `json:"document_id"`
	Status     string               `json:"status"`
	Result     *models.IngestResult `json:"result,omitempty"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// StatusCache keeps ingest progress in Redis with a TTL.
type StatusCache struct {
	rdb *redis.Client
}

func NewStatusCache(rdb *redis.Client) *StatusCache {
	return &StatusCache{rdb: rdb}
}

func (c *StatusCache) Set(ctx context.Context, documentID, status string, result *models.IngestResult) error {
	entry := IngestStatus{
		DocumentID: documentID,
		Status:     status,
		Result:     result,
		UpdatedAt:  time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ingest status: %w", err)
	}
	if err := c.rdb.Set(ctx, statusKeyPrefix+documentID, data, statusTTL).Err(); err != nil {
		return fmt.Errorf("cache ingest status: %w", err)
	}
	return nil
}

// Get returns nil without error when no status is cached.
func (c *StatusCache) Get(ctx context.Context, documentID string) (*IngestStatus, error) {
	data, err := c.rdb.Get(ctx, statusKeyPrefix+documentID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ingest status: %w", err)
	}

	var entry IngestStatus
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode ingest status: %w", err)
	}
	return &entry, nil
}
