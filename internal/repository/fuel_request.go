package repository

import (
	"context"
	"errors"
	"time"

	"fuelops-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNoTransitionMatch means the record exists but its status no longer
// satisfies the transition precondition, i.e. a concurrent writer got there
// first.
var ErrNoTransitionMatch = errors.New("request status changed concurrently")

var ErrRequestNotFound = errors.New("fuel request not found")

// RequestFilter narrows list queries. Empty fields are ignored.
type RequestFilter struct {
	Status    string
	VehicleID string
	DriverID  string
}

type FuelRequestRepository struct {
	collection *mongo.Collection
}

func NewFuelRequestRepository(db *mongo.Database) *FuelRequestRepository {
	return &FuelRequestRepository{
		collection: db.Collection("fuel_requests"),
	}
}

func (r *FuelRequestRepository) Create(request *models.FuelRequest) (*models.FuelRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, request)
	if err != nil {
		return nil, err
	}

	request.ID = result.InsertedID.(primitive.ObjectID)
	return request, nil
}

func (r *FuelRequestRepository) FindByID(id string) (*models.FuelRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	var request models.FuelRequest
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&request)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return &request, nil
}

func (r *FuelRequestRepository) FindAll(filter RequestFilter) ([]*models.FuelRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.VehicleID != "" {
		query["vehicle_id"] = filter.VehicleID
	}
	if filter.DriverID != "" {
		query["driver_id"] = filter.DriverID
	}

	opts := options.Find().SetSort(bson.D{{Key: "request_time", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var requests []*models.FuelRequest
	for cursor.Next(ctx) {
		var request models.FuelRequest
		if err := cursor.Decode(&request); err != nil {
			return nil, err
		}
		requests = append(requests, &request)
	}

	return requests, nil
}

// ApplyTransition updates the record only if its current status is one of
// fromStatuses, making the precondition check and the write a single atomic
// step on the database side.
func (r *FuelRequestRepository) ApplyTransition(id string, fromStatuses []string, set bson.M) (*models.FuelRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	set["updated_at"] = time.Now()
	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": fromStatuses},
	}

	result := r.collection.FindOneAndUpdate(
		ctx,
		filter,
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.FuelRequest
	if err := result.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoTransitionMatch
		}
		return nil, err
	}

	return &updated, nil
}

// StatusCounts aggregates request counts per status plus total approved
// liters, for the manager dashboard.
func (r *FuelRequestRepository) StatusCounts() (map[string]int64, float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":             "$status",
				"count":           bson.M{"$sum": 1},
				"approved_liters": bson.M{"$sum": "$approved_amount"},
			},
		},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	var approvedLiters float64
	for cursor.Next(ctx) {
		var row struct {
			Status         string  `bson:"_id"`
			Count          int64   `bson:"count"`
			ApprovedLiters float64 `bson:"approved_liters"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, 0, err
		}
		counts[row.Status] = row.Count
		if row.Status == models.StatusApproved || row.Status == models.StatusFulfilled {
			approvedLiters += row.ApprovedLiters
		}
	}

	return counts, approvedLiters, nil
}

// PurgeTerminalBefore deletes rejected, cancelled and fulfilled requests
// whose last update is older than the cutoff. Pending and approved requests
// are never touched.
func (r *FuelRequestRepository) PurgeTerminalBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{
		"status":     bson.M{"$in": []string{models.StatusRejected, models.StatusCancelled, models.StatusFulfilled}},
		"updated_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// CreateIndexes creates necessary indexes for the fuel_requests collection
func (r *FuelRequestRepository) CreateIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "vehicle_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "request_time", Value: -1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
