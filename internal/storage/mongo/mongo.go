package mongo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/fleethours/internal/activity"
	"github.com/goodtune/fleethours/internal/config"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventStore reads activity events from a MongoDB collection. It implements
// activity.Fetcher.
type EventStore struct {
	client       *mongo.Client
	collection   *mongo.Collection
	queryTimeout time.Duration
	logger       zerolog.Logger
}

// Open connects to MongoDB and verifies the connection
func Open(cfg config.MongoConfig, logger zerolog.Logger) (*EventStore, error) {
	connectTimeout, err := time.ParseDuration(cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid connect_timeout: %w", err)
	}

	queryTimeout, err := time.ParseDuration(cfg.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid query_timeout: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(connectTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &EventStore{
		client:       client,
		collection:   client.Database(cfg.Database).Collection(cfg.Collection),
		queryTimeout: queryTimeout,
		logger:       logger.With().Str("component", "mongo").Logger(),
	}, nil
}

// Close disconnects the client
func (s *EventStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// FetchEvents returns the location's events of the given types inside the
// window, ascending by timestamp.
func (s *EventStore) FetchEvents(ctx context.Context, locationID string, w activity.Window, types []activity.EventType) ([]activity.Event, error) {
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdTimestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, eventFilter(locationID, w, types), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]activity.Event, 0)
	skipped := 0
	for cursor.Next(ctx) {
		var doc eventDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}

		ev, ok := doc.toEvent(locationID)
		if !ok {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("event cursor failed: %w", err)
	}

	if skipped > 0 {
		s.logger.Debug().
			Str("location_id", locationID).
			Int("skipped", skipped).
			Msg("Skipped events without a usable target")
	}

	return events, nil
}

// eventFilter matches events of a location and type set inside [start, end).
// Locations are stored either as strings or as ObjectIDs, so both are matched.
func eventFilter(locationID string, w activity.Window, types []activity.EventType) bson.D {
	locations := bson.A{locationID}
	if oid, err := primitive.ObjectIDFromHex(locationID); err == nil {
		locations = append(locations, oid)
	}

	tags := make(bson.A, 0, len(types))
	for _, t := range types {
		tags = append(tags, string(t))
	}

	return bson.D{
		{Key: "eventData.location", Value: bson.D{{Key: "$in", Value: locations}}},
		{Key: "eventType", Value: bson.D{{Key: "$in", Value: tags}}},
		{Key: "createdTimestamp", Value: bson.D{
			{Key: "$gte", Value: w.Start.UTC()},
			{Key: "$lt", Value: w.End.UTC()},
		}},
	}
}

type eventDocument struct {
	ID               primitive.ObjectID `bson:"_id"`
	EventType        string             `bson:"eventType"`
	TargetType       string             `bson:"targetType"`
	TargetID         string             `bson:"targetId"`
	CreatedTimestamp time.Time          `bson:"createdTimestamp"`
	EventData        eventData          `bson:"eventData"`
}

type eventData struct {
	Responses bson.M `bson:"responses"`
}

// toEvent converts a stored document. Documents without a target or with an
// unknown type are rejected.
func (d eventDocument) toEvent(locationID string) (activity.Event, bool) {
	if d.TargetID == "" {
		return activity.Event{}, false
	}

	eventType, err := activity.ParseEventType(d.EventType)
	if err != nil {
		return activity.Event{}, false
	}

	targetType, err := activity.ParseTargetType(d.TargetType)
	if err != nil {
		return activity.Event{}, false
	}

	return activity.Event{
		ID:         d.ID.Hex(),
		TargetID:   d.TargetID,
		TargetType: targetType,
		LocationID: locationID,
		Type:       eventType,
		Timestamp:  d.CreatedTimestamp.UTC(),
		Attributes: readings(d.EventData.Responses),
	}, true
}

// readings keeps the numeric responses for tracked attributes.
func readings(responses bson.M) map[activity.Attribute]float64 {
	if len(responses) == 0 {
		return nil
	}

	out := make(map[activity.Attribute]float64, len(responses))
	for key, raw := range responses {
		attr, err := activity.ParseAttribute(key)
		if err != nil {
			continue
		}
		if v, ok := numeric(raw); ok {
			out[attr] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func numeric(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(v.String(), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
