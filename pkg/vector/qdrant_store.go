package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/google/uuid"
	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	defaultCollection = "tutor_corpus"
	defaultQdrantPort = 6334
	upsertBatchSize   = 100
)

// Payload keys stored alongside every point
const (
	payloadText       = "text"
	payloadSource     = "source"
	payloadDocumentID = "document_id"
	payloadOrdinal    = "ordinal"
	payloadSeq        = "seq"
)

// pointNamespace seeds deterministic point ids derived from chunk offsets
var pointNamespace = uuid.MustParse("6f0c6a52-3b7e-4c84-9d0e-1f5a2b7c9e41")

// QdrantStore keeps embedded chunks in a Qdrant collection over gRPC
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	collection  string
	logger      *slog.Logger

	mu    sync.Mutex
	ready bool
	seq   int64
}

// NewQdrantStore connects to the Qdrant server described by cfg.
// The collection is created lazily on the first Upsert, once the vector size is known.
// Upserts into a collection that already exists continue its insertion sequence.
func NewQdrantStore(cfg Config, logger *slog.Logger) (*QdrantStore, error) {
	host := cfg.QdrantHost
	if host == "" {
		host = "localhost"
	}
	port := cfg.QdrantPort
	if port == 0 {
		port = defaultQdrantPort
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect to %s: %w", addr, err)
	}

	s := newQdrantStore(qdrantclient.NewCollectionsClient(conn), qdrantclient.NewPointsClient(conn), cfg, logger)
	s.conn = conn
	return s, nil
}

func newQdrantStore(collections qdrantclient.CollectionsClient, points qdrantclient.PointsClient, cfg Config, logger *slog.Logger) *QdrantStore {
	if logger == nil {
		logger = slog.Default()
	}
	collection := cfg.Collection
	if collection == "" {
		collection = defaultCollection
	}
	return &QdrantStore{
		collections: collections,
		points:      points,
		collection:  collection,
		logger:      logger,
	}
}

// Upsert writes chunks in batches, waiting for each batch to be applied
func (s *QdrantStore) Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setupCollection(ctx, len(chunks[0].Embedding)); err != nil {
		return err
	}

	wait := true
	batch := make([]*qdrantclient.PointStruct, 0, upsertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		s.logger.Debug("qdrant: upserting batch", "collection", s.collection, "points", len(batch))
		_, err := s.points.Upsert(ctx, &qdrantclient.UpsertPoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         batch,
		})
		if err != nil {
			return fmt.Errorf("qdrant: upsert points: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for _, c := range chunks {
		batch = append(batch, pointFromChunk(c, s.seq))
		s.seq++
		if len(batch) >= upsertBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Search queries the collection and returns results best first.
// Equal scores are ordered by insertion sequence.
func (s *QdrantStore) Search(ctx context.Context, queryVector []float32, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	resp, err := s.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: s.collection,
		Vector:         queryVector,
		Limit:          uint64(limit),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	type ranked struct {
		result models.SearchResult
		seq    int64
	}
	hits := make([]ranked, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		result, seq := resultFromScoredPoint(point)
		hits = append(hits, ranked{result: result, seq: seq})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].result.Score != hits[j].result.Score {
			return hits[i].result.Score > hits[j].result.Score
		}
		return hits[i].seq < hits[j].seq
	})

	results := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = h.result
	}
	return results, nil
}

// Count returns the exact number of points in the collection
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &qdrantclient.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Close releases the gRPC connection
func (s *QdrantStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Reset deletes the collection. The next Upsert creates it again with the
// dimension of the new embeddings.
func (s *QdrantStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		s.logger.Info("qdrant: deleting existing collection", "collection", s.collection)
		if _, err := s.collections.Delete(ctx, &qdrantclient.DeleteCollection{CollectionName: s.collection}); err != nil {
			return fmt.Errorf("qdrant: delete collection: %w", err)
		}
	}
	s.ready = false
	s.seq = 0
	return nil
}

func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	collections, err := s.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, col := range collections.GetCollections() {
		if col.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// setupCollection creates the collection, or picks up the sequence of an
// existing one. Must be called with mu held.
func (s *QdrantStore) setupCollection(ctx context.Context, dimension int) error {
	if s.ready {
		return nil
	}
	if dimension == 0 {
		return fmt.Errorf("qdrant: empty embedding: %w", ErrDimensionMismatch)
	}

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		n, err := s.Count(ctx)
		if err != nil {
			return err
		}
		s.seq = int64(n)
		s.logger.Info("qdrant: appending to existing collection", "collection", s.collection, "points", n)
	} else {
		s.logger.Info("qdrant: creating collection", "collection", s.collection, "dimension", dimension)
		_, err := s.collections.Create(ctx, &qdrantclient.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &qdrantclient.VectorsConfig{
				Config: &qdrantclient.VectorsConfig_Params{
					Params: &qdrantclient.VectorParams{
						Size:     uint64(dimension),
						Distance: qdrantclient.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("qdrant: create collection: %w", err)
		}
	}

	s.ready = true
	return nil
}

func pointFromChunk(c models.EmbeddedChunk, seq int64) *qdrantclient.PointStruct {
	id := uuid.NewSHA1(pointNamespace, []byte(c.SourceOffset.String()))
	return &qdrantclient.PointStruct{
		Id: &qdrantclient.PointId{
			PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: id.String()},
		},
		Vectors: &qdrantclient.Vectors{
			VectorsOptions: &qdrantclient.Vectors_Vector{
				Vector: &qdrantclient.Vector{Data: c.Embedding},
			},
		},
		Payload: map[string]*qdrantclient.Value{
			payloadText:       {Kind: &qdrantclient.Value_StringValue{StringValue: c.Text}},
			payloadSource:     {Kind: &qdrantclient.Value_StringValue{StringValue: c.Source}},
			payloadDocumentID: {Kind: &qdrantclient.Value_StringValue{StringValue: c.SourceOffset.DocumentID}},
			payloadOrdinal:    {Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(c.SourceOffset.Ordinal)}},
			payloadSeq:        {Kind: &qdrantclient.Value_IntegerValue{IntegerValue: seq}},
		},
	}
}

func resultFromScoredPoint(point *qdrantclient.ScoredPoint) (models.SearchResult, int64) {
	payload := point.GetPayload()
	chunk := models.Chunk{
		Text:   payload[payloadText].GetStringValue(),
		Source: payload[payloadSource].GetStringValue(),
		SourceOffset: models.SourceOffset{
			DocumentID: payload[payloadDocumentID].GetStringValue(),
			Ordinal:    int(payload[payloadOrdinal].GetIntegerValue()),
		},
	}
	return models.SearchResult{Chunk: chunk, Score: point.GetScore()}, payload[payloadSeq].GetIntegerValue()
}

var _ Store = (*QdrantStore)(nil)
