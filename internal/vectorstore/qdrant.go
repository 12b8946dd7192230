package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
)

const (
	backendQdrant = "qdrant"

	urlPayloadKey = "url"

	defaultQdrantCollection = "assessd_catalog"
	defaultQdrantPort       = 6334
	defaultUpsertBatch      = 256
	// 50MB covers catalogs with large vectors in one upsert batch.
	defaultMaxMessageSize = 50 * 1024 * 1024
)

// ErrQdrantUnavailable indicates the Qdrant server could not be reached.
var ErrQdrantUnavailable = errors.New("qdrant unavailable")

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// UpsertBatch is the number of points per upsert call.
	UpsertBatch    int
	MaxMessageSize int
	// HealthTimeout bounds the startup health check.
	HealthTimeout time.Duration
}

// ApplyDefaults fills unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = defaultQdrantPort
	}
	if c.Collection == "" {
		c.Collection = defaultQdrantCollection
	}
	if c.UpsertBatch <= 0 {
		c.UpsertBatch = defaultUpsertBatch
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 5 * time.Second
	}
}

// QdrantIndex serves searches from a Qdrant collection over gRPC. The
// collection is rebuilt from the catalog at construction, so the catalog
// file stays the source of truth.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	positions  map[string]int
	entries    []entry
	size       int
	dim        int
	logger     *zap.Logger
}

// pointID derives a stable point id from a record URL.
func pointID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// NewQdrantIndex connects to Qdrant, recreates the collection and uploads
// every record vector.
func NewQdrantIndex(ctx context.Context, records []catalog.Record, cfg QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Build")
	defer span.End()

	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	entries, dim, err := prepare(records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", cfg.Host))
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnavailable, err)
	}

	idx := &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		positions:  make(map[string]int, len(entries)),
		entries:    entries,
		size:       len(entries),
		dim:        dim,
		logger:     logger,
	}
	if err := idx.load(ctx, cfg); err != nil {
		_ = client.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("collection", cfg.Collection),
		attribute.Int("documents", idx.size),
		attribute.Int("dimension", dim),
	)
	logger.Info("built qdrant index",
		zap.String("collection", cfg.Collection),
		zap.Int("documents", idx.size),
		zap.Int("dimension", dim))
	return idx, nil
}

func (q *QdrantIndex) load(ctx context.Context, cfg QdrantConfig) error {
	hctx, cancel := context.WithTimeout(ctx, cfg.HealthTimeout)
	defer cancel()
	if _, err := q.client.HealthCheck(hctx); err != nil {
		return fmt.Errorf("%w: health check: %v", ErrQdrantUnavailable, err)
	}

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", q.collection, err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
			return fmt.Errorf("dropping stale collection %s: %w", q.collection, err)
		}
	}
	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("creating collection %s: %w", q.collection, err)
	}

	for lo := 0; lo < len(q.entries); lo += cfg.UpsertBatch {
		hi := min(lo+cfg.UpsertBatch, len(q.entries))
		points := make([]*qdrant.PointStruct, 0, hi-lo)
		for _, e := range q.entries[lo:hi] {
			q.positions[e.id] = e.pos
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(pointID(e.id)),
				Vectors: qdrant.NewVectors(e.vec...),
				Payload: qdrant.NewValueMap(map[string]any{
					urlPayloadKey: e.id,
					positionKey:   int64(e.pos),
				}),
			})
		}
		if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return fmt.Errorf("upserting points %d-%d: %w", lo, hi-1, err)
		}
	}
	return nil
}

// Search implements Index. Queries use exact search so results match the
// flat backend; ties are widened and re-sorted as in ChromemIndex.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, n int) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Search")
	defer span.End()
	start := time.Now()

	n = clampN(n, q.size)
	span.SetAttributes(attribute.Int("n", n))
	if n <= 0 {
		return []Match{}, nil
	}

	vec, err := prepareQuery(vector, q.dim)
	if err != nil {
		observeSearch(backendQdrant, start, err)
		return nil, err
	}

	var points []*qdrant.ScoredPoint
	for k := n; ; k = clampN(k*2, q.size) {
		points, err = q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: q.collection,
			Query:          qdrant.NewQuery(vec...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayloadInclude(urlPayloadKey),
			Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observeSearch(backendQdrant, start, err)
			return nil, fmt.Errorf("querying qdrant: %w", err)
		}
		if len(points) < n {
			err := &IndexError{Op: "search", Position: -1,
				Reason: fmt.Sprintf("qdrant returned %d points, want %d", len(points), n)}
			observeSearch(backendQdrant, start, err)
			return nil, err
		}
		if k == q.size || points[len(points)-1].Score < points[n-1].Score {
			break
		}
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		url := p.GetPayload()[urlPayloadKey].GetStringValue()
		pos, ok := q.positions[url]
		if !ok {
			err := &IndexError{Op: "search", ID: url, Position: -1, Reason: "point not in catalog"}
			observeSearch(backendQdrant, start, err)
			return nil, err
		}
		matches = append(matches, Match{ID: url, Position: pos, Similarity: dot(vec, q.entries[pos].vec)})
	}
	sortMatches(matches)

	span.SetAttributes(attribute.Int("fetched", len(points)))
	observeSearch(backendQdrant, start, nil)
	return matches[:n], nil
}

// Len implements Index.
func (q *QdrantIndex) Len() int { return q.size }

// Dimension implements Index.
func (q *QdrantIndex) Dimension() int { return q.dim }

// Close releases the gRPC connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
