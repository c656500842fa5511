package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docsearch-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentStore persists the source-document records.
type DocumentStore struct {
	collection *mongo.Collection
}

func NewDocumentStore(db *mongo.Database) *DocumentStore {
	return &DocumentStore{collection: db.Collection("documents")}
}

func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	_, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("find document %s: %w", id, err)
	}
	return &doc, nil
}

// FindByHash returns the existing document with the same content hash, or
// nil when this upload is new.
func (s *DocumentStore) FindByHash(ctx context.Context, hash string) (*models.Document, error) {
	var doc models.Document
	err := s.collection.FindOne(ctx, bson.M{"file_hash": hash}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find document by hash: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	update := bson.M{"status": status, "error_message": errMsg}
	if status == models.StatusCompleted {
		now := time.Now()
		update["ingested_at"] = now
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (s *DocumentStore) SetPayloadBlobKey(ctx context.Context, id, key, provider string) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"payload_blob_key": key, "provider": provider}})
	if err != nil {
		return fmt.Errorf("update document payload key: %w", err)
	}
	return nil
}

// ExtractionStore persists extraction sessions and their objects.
type ExtractionStore struct {
	sessions *mongo.Collection
	objects  *mongo.Collection
}

func NewExtractionStore(db *mongo.Database) *ExtractionStore {
	return &ExtractionStore{
		sessions: db.Collection("extraction_sessions"),
		objects:  db.Collection("extracted_objects"),
	}
}

func (s *ExtractionStore) CreateSession(ctx context.Context, session *models.ExtractionSession) error {
	_, err := s.sessions.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("insert extraction session: %w", err)
	}
	return nil
}

// FinishSession moves a session to a terminal status.
func (s *ExtractionStore) FinishSession(ctx context.Context, id, status, errMsg string, pageCount int) error {
	now := time.Now()
	_, err := s.sessions.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":        status,
		"error_message": errMsg,
		"page_count":    pageCount,
		"finished_at":   now,
	}})
	if err != nil {
		return fmt.Errorf("finish extraction session: %w", err)
	}
	return nil
}

// InsertObjects bulk-inserts a session's objects. Insertion is unordered
// so one bad record does not block the rest.
func (s *ExtractionStore) InsertObjects(ctx context.Context, objects []models.ExtractedObject) error {
	if len(objects) == 0 {
		return nil
	}
	docs := make([]interface{}, len(objects))
	for i := range objects {
		docs[i] = objects[i]
	}
	_, err := s.objects.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("insert extracted objects: %w", err)
	}
	return nil
}

func (s *ExtractionStore) ListObjects(ctx context.Context, sessionID string) ([]models.ExtractedObject, error) {
	cursor, err := s.objects.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list extracted objects: %w", err)
	}
	defer cursor.Close(ctx)

	var objects []models.ExtractedObject
	if err := cursor.All(ctx, &objects); err != nil {
		return nil, fmt.Errorf("decode extracted objects: %w", err)
	}
	return objects, nil
}

// UpdateObjectFeatures backfills image features after materialization.
func (s *ExtractionStore) UpdateObjectFeatures(ctx context.Context, objectID string, features *models.ImageFeatures) error {
	_, err := s.objects.UpdateOne(ctx, bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"features": features}})
	if err != nil {
		return fmt.Errorf("update object features: %w", err)
	}
	return nil
}

// MarkStaleSessions fails sessions stuck in running beyond the TTL. Used
// by the maintenance sweeper; returns the number of sessions failed.
func (s *ExtractionStore) MarkStaleSessions(ctx context.Context, olderThan time.Time) (int64, error) {
	now := time.Now()
	res, err := s.sessions.UpdateMany(ctx,
		bson.M{"status": models.SessionRunning, "started_at": bson.M{"$lt": olderThan}},
		bson.M{"$set": bson.M{
			"status":        models.SessionFailed,
			"error_message": "session exceeded processing deadline",
			"finished_at":   now,
		}})
	if err != nil {
		return 0, fmt.Errorf("mark stale sessions: %w", err)
	}
	return res.ModifiedCount, nil
}

// ChunkStore persists chunk sessions, chunks and embeddings.
type ChunkStore struct {
	sessions   *mongo.Collection
	chunks     *mongo.Collection
	embeddings *mongo.Collection
}

func NewChunkStore(db *mongo.Database) *ChunkStore {
	return &ChunkStore{
		sessions:   db.Collection("chunk_sessions"),
		chunks:     db.Collection("chunks"),
		embeddings: db.Collection("embeddings"),
	}
}

func (s *ChunkStore) CreateSession(ctx context.Context, session *models.ChunkSession) error {
	_, err := s.sessions.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("insert chunk session: %w", err)
	}
	return nil
}

func (s *ChunkStore) CompleteSession(ctx context.Context, id string, chunkCount int) error {
	_, err := s.sessions.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":      models.SessionSuccess,
		"chunk_count": chunkCount,
	}})
	if err != nil {
		return fmt.Errorf("complete chunk session: %w", err)
	}
	return nil
}

func (s *ChunkStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		docs[i] = chunks[i]
	}
	_, err := s.chunks.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

func (s *ChunkStore) InsertEmbeddings(ctx context.Context, rows []models.Embedding) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]interface{}, len(rows))
	for i := range rows {
		docs[i] = rows[i]
	}
	_, err := s.embeddings.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("insert embeddings: %w", err)
	}
	return nil
}

func (s *ChunkStore) ListChunks(ctx context.Context, chunkSessionID string) ([]models.Chunk, error) {
	cursor, err := s.chunks.Find(ctx, bson.M{"chunk_session_id": chunkSessionID},
		options.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	return chunks, nil
}

// DeleteSessionCascade removes a chunk session with its chunks and their
// embeddings. Used when a reingestion supersedes an old session.
func (s *ChunkStore) DeleteSessionCascade(ctx context.Context, chunkSessionID string) error {
	cursor, err := s.chunks.Find(ctx, bson.M{"chunk_session_id": chunkSessionID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return fmt.Errorf("find chunks for cascade: %w", err)
	}
	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err == nil {
			ids = append(ids, row.ID)
		}
	}
	cursor.Close(ctx)

	if len(ids) > 0 {
		if _, err := s.embeddings.DeleteMany(ctx, bson.M{"chunk_id": bson.M{"$in": ids}}); err != nil {
			return fmt.Errorf("delete embeddings: %w", err)
		}
	}
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"chunk_session_id": chunkSessionID}); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := s.sessions.DeleteOne(ctx, bson.M{"_id": chunkSessionID}); err != nil {
		return fmt.Errorf("delete chunk session: %w", err)
	}
	return nil
}

// IndexStore persists and queries the per-document search records.
type IndexStore struct {
	collection *mongo.Collection
}

func NewIndexStore(db *mongo.Database) *IndexStore {
	return &IndexStore{collection: db.Collection("search_index")}
}

// Upsert replaces the document's search record wholesale.
func (s *IndexStore) Upsert(ctx context.Context, record *models.SearchIndexRecord) error {
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": record.DocumentID}, record, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert search record: %w", err)
	}
	return nil
}

func (s *IndexStore) Get(ctx context.Context, documentID string) (*models.SearchIndexRecord, error) {
	var record models.SearchIndexRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": documentID}).Decode(&record)
	if err != nil {
		return nil, fmt.Errorf("find search record %s: %w", documentID, err)
	}
	return &record, nil
}

// Search runs a full-text query over the aggregated text and keywords,
// returning records by text score.
func (s *IndexStore) Search(ctx context.Context, query string, limit int) ([]models.SearchIndexRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	cursor, err := s.collection.Find(ctx,
		bson.M{"$text": bson.M{"$search": query}},
		options.Find().
			SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}, "aggregated_text": 0}).
			SetSort(bson.M{"score": bson.M{"$meta": "textScore"}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.SearchIndexRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	return records, nil
}
