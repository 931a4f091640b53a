// Package qdrant stores knowledge chunks in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"aligncall/internal/model"
)

const contentKey = "content"

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// KnowledgeStore is the Qdrant-backed knowledge store.
type KnowledgeStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New dials Qdrant at addr (gRPC port, usually 6334).
func New(addr, collection string) (*KnowledgeStore, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s failed: %w", addr, err)
	}
	s := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	s.conn = conn
	return s, nil
}

// NewWithClients builds a store over already constructed clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *KnowledgeStore {
	return &KnowledgeStore{
		points:      points,
		collections: collections,
		collection:  collection,
	}
}

func (s *KnowledgeStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Ping lists collections to prove the server answers.
func (s *KnowledgeStore) Ping(ctx context.Context) error {
	if _, err := s.collections.List(ctx, &pb.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("list qdrant collections failed: %w", err)
	}
	return nil
}

// Dimension returns the collection's vector size, or 0 when it does not exist yet.
func (s *KnowledgeStore) Dimension(ctx context.Context) (int, error) {
	exists, err := s.exists(ctx)
	if err != nil || !exists {
		return 0, err
	}
	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return 0, fmt.Errorf("get qdrant collection %s failed: %w", s.collection, err)
	}
	size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	return int(size), nil
}

// EnsureCollection creates the collection with cosine distance if it is missing.
func (s *KnowledgeStore) EnsureCollection(ctx context.Context, dims int) error {
	exists, err := s.exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection %s failed: %w", s.collection, err)
	}
	return nil
}

// Insert upserts chunks. Point ids derive from content so reloading a corpus
// overwrites instead of duplicating.
func (s *KnowledgeStore) Insert(ctx context.Context, chunks []model.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.EnsureCollection(ctx, chunks[0].Dimension); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(c.Content)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: c.EmbeddingVector()},
				},
			},
			Payload: map[string]*pb.Value{
				contentKey: {Kind: &pb.Value_StringValue{StringValue: c.Content}},
				"source":   {Kind: &pb.Value_StringValue{StringValue: c.Source}},
			},
		}
	}

	wait := true
	if _, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upsert %d qdrant points failed: %w", len(points), err)
	}
	return nil
}

// Search runs a k-NN query. exact disables the HNSW index and scans every point.
func (s *KnowledgeStore) Search(ctx context.Context, vector []float32, topK int, exact bool) ([]model.KnowledgeHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Params:         &pb.SearchParams{Exact: &exact},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	hits := make([]model.KnowledgeHit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hits = append(hits, model.KnowledgeHit{
			Content: p.GetPayload()[contentKey].GetStringValue(),
			Score:   p.GetScore(),
		})
	}
	return hits, nil
}

func (s *KnowledgeStore) exists(ctx context.Context) (bool, error) {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("list qdrant collections failed: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// PointID is the deterministic point id for a chunk's content.
func PointID(content string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(content)).String()
}
