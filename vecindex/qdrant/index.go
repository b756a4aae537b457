// Copyright 2025 Carrel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package qdrant implements vecindex.Index against a Qdrant server over
// gRPC. Each namespace maps to its own collection, so namespace isolation is
// enforced by the database, not by filters.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/carrelhq/carrel/vecindex"
)

const (
	payloadDocumentID = "document_id"
	payloadSource     = "source"
	payloadSequence   = "sequence"
	payloadText       = "text"
)

// Option customizes the index.
type Option func(*Index)

// WithCollectionPrefix sets the prefix prepended to every namespace when
// naming collections. Lets one Qdrant server host several applications.
func WithCollectionPrefix(prefix string) Option {
	return func(idx *Index) {
		idx.prefix = prefix
	}
}

// Index talks to Qdrant. Collections are created lazily on first upsert with
// the dimensionality of the vectors being written.
type Index struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	prefix      string
	logger      *slog.Logger

	mu    sync.Mutex
	known map[string]bool
}

// NewIndex connects to a Qdrant gRPC endpoint, e.g. "localhost:6334".
func NewIndex(addr string, opts ...Option) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	idx := &Index{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
		prefix:      "carrel-",
		logger:      slog.Default().With("component", "qdrant-index"),
		known:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Close releases the gRPC connection.
func (idx *Index) Close() error {
	return idx.conn.Close()
}

// Upsert writes records into the namespace's collection, creating the
// collection on first use.
func (idx *Index) Upsert(ctx context.Context, namespace string, records []vecindex.Record) error {
	if len(records) == 0 {
		return nil
	}

	collection := idx.collectionName(namespace)
	if err := idx.ensureCollection(ctx, collection, uint64(len(records[0].Vector))); err != nil {
		return err
	}

	points := make([]*qdrantclient.PointStruct, len(records))
	for i, record := range records {
		points[i] = &qdrantclient.PointStruct{
			Id: &qdrantclient.PointId{
				PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: record.Id},
			},
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{Data: record.Vector},
				},
			},
			Payload: map[string]*qdrantclient.Value{
				payloadDocumentID: {Kind: &qdrantclient.Value_StringValue{StringValue: record.Metadata.DocumentId}},
				payloadSource:     {Kind: &qdrantclient.Value_StringValue{StringValue: record.Metadata.Source}},
				payloadSequence:   {Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(record.Metadata.Sequence)}},
				payloadText:       {Kind: &qdrantclient.Value_StringValue{StringValue: record.Metadata.Text}},
			},
		}
	}

	wait := true
	_, err := idx.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// Query searches the namespace's collection. A collection that was never
// created yields no matches.
func (idx *Index) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vecindex.Match, error) {
	collection := idx.collectionName(namespace)

	resp, err := idx.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("search points: %w", err)
	}

	matches := make([]vecindex.Match, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		matches = append(matches, vecindex.Match{
			Id:    point.GetId().GetUuid(),
			Score: point.GetScore(),
			Metadata: vecindex.Metadata{
				DocumentId: point.GetPayload()[payloadDocumentID].GetStringValue(),
				Source:     point.GetPayload()[payloadSource].GetStringValue(),
				Sequence:   int(point.GetPayload()[payloadSequence].GetIntegerValue()),
				Text:       point.GetPayload()[payloadText].GetStringValue(),
			},
		})
	}
	return matches, nil
}

// Delete removes points by id. Unknown collections and ids are ignored.
func (idx *Index) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIds := make([]*qdrantclient.PointId, len(ids))
	for i, id := range ids {
		pointIds[i] = &qdrantclient.PointId{
			PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: id},
		}
	}

	wait := true
	_, err := idx.points.Delete(ctx, &qdrantclient.DeletePoints{
		CollectionName: idx.collectionName(namespace),
		Wait:           &wait,
		Points: &qdrantclient.PointsSelector{
			PointsSelectorOneOf: &qdrantclient.PointsSelector_Points{
				Points: &qdrantclient.PointsIdsList{Ids: pointIds},
			},
		},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

func (idx *Index) collectionName(namespace string) string {
	return idx.prefix + namespace
}

// ensureCollection creates the collection if this process hasn't seen it
// yet. Concurrent creation by another process is tolerated.
func (idx *Index) ensureCollection(ctx context.Context, collection string, dim uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.known[collection] {
		return nil
	}

	exists, err := idx.collectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		_, err := idx.collections.Create(ctx, &qdrantclient.CreateCollection{
			CollectionName: collection,
			VectorsConfig: &qdrantclient.VectorsConfig{
				Config: &qdrantclient.VectorsConfig_Params{
					Params: &qdrantclient.VectorParams{
						Size:     dim,
						Distance: qdrantclient.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			// Another writer may have created it between our check and the
			// create call.
			exists, checkErr := idx.collectionExists(ctx, collection)
			if checkErr != nil || !exists {
				return fmt.Errorf("create collection %q: %w", collection, err)
			}
		} else {
			idx.logger.Info("created collection", "collection", collection, "dimensions", dim)
		}
	}

	idx.known[collection] = true
	return nil
}

func (idx *Index) collectionExists(ctx context.Context, collection string) (bool, error) {
	resp, err := idx.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	for _, col := range resp.GetCollections() {
		if col.GetName() == collection {
			return true, nil
		}
	}
	return false, nil
}
