// Package watch exposes the document-store change-subscription primitive as a
// callback boundary.
//
// Session-holding clients use it to observe an approval transition on their
// own record without polling. The core request/response logic never depends
// on it; only the HTTP boundary wires it in.
package watch

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Unsubscribe stops a running subscription and releases its change stream.
type Unsubscribe func()

// Document subscribes to replace/update events for a single document in the
// given collection and invokes onChange with the full post-image of each
// change. It returns an Unsubscribe func; the subscription also ends when ctx
// is canceled.
//
// Change streams need a replica set; on standalone servers Watch fails and
// the error is returned so the caller can fall back to polling.
func Document(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, logger *zap.Logger, onChange func(raw bson.Raw)) (Unsubscribe, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "documentKey._id", Value: id},
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace"}}}},
		}}},
	}

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := coll.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			var event struct {
				FullDocument bson.Raw `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				logger.Warn("change stream decode failed",
					zap.String("collection", coll.Name()),
					zap.Error(err))
				continue
			}
			if event.FullDocument != nil {
				onChange(event.FullDocument)
			}
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			logger.Warn("change stream ended with error",
				zap.String("collection", coll.Name()),
				zap.String("document_id", id.Hex()),
				zap.Error(err))
		}
	}()

	return Unsubscribe(cancel), nil
}
