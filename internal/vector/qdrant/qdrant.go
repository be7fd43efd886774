package qdrant

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/codechart/internal/vector"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// contentKey holds the document text inside the point payload.
const contentKey = "content"

// QdrantRepository implements vector.Repository using Qdrant's gRPC API.
type QdrantRepository struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// NewQdrant dials host:port. The connection is lazy; the first call
// surfaces network errors.
func NewQdrant(ctx context.Context, host string, port int, collection string) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantRepository{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist yet. size must match the embedding dimension.
func (r *QdrantRepository) EnsureCollection(ctx context.Context, size uint64) error {
	resp, err := r.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: r.collection})
	if err != nil {
		return fmt.Errorf("qdrant collection exists: %w", err)
	}
	if resp.GetResult().GetExists() {
		return nil
	}
	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig:  pb.NewVectorsConfig(&pb.VectorParams{Size: size, Distance: pb.Distance_Cosine}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", r.collection, err)
	}
	return nil
}

func (r *QdrantRepository) Upsert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         toPoints(docs),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (r *QdrantRepository) Search(ctx context.Context, vec []float32, topK int) ([]vector.SearchResult, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	return fromScored(resp.GetResult()), nil
}

func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

func toPoints(docs []vector.Document) []*pb.PointStruct {
	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		payload := map[string]*pb.Value{contentKey: pb.NewValueString(d.Content)}
		for k, v := range d.Metadata {
			payload[k] = pb.NewValueString(v)
		}
		points[i] = &pb.PointStruct{
			Id:      pb.NewID(d.ID),
			Vectors: pb.NewVectorsDense(d.Vector),
			Payload: payload,
		}
	}
	return points
}

func fromScored(points []*pb.ScoredPoint) []vector.SearchResult {
	results := make([]vector.SearchResult, len(points))
	for i, pt := range points {
		meta := make(map[string]string)
		var content string
		for k, v := range pt.GetPayload() {
			if k == contentKey {
				content = v.GetStringValue()
				continue
			}
			meta[k] = v.GetStringValue()
		}
		results[i] = vector.SearchResult{
			ID:       pt.GetId().GetUuid(),
			Score:    pt.GetScore(),
			Content:  content,
			Metadata: meta,
		}
	}
	return results
}

var _ vector.Repository = (*QdrantRepository)(nil)
