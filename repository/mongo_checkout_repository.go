package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"checkout-service/models"
)

type mongoCheckoutRepo struct {
	coll *mongo.Collection
}

func NewMongoCheckoutRepo(db *mongo.Database) CheckoutRepository {
	return &mongoCheckoutRepo{coll: db.Collection(checkoutsCollection)}
}

// EnsureMongoIndexes creates the uniqueness constraints the ledger relies on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(checkoutsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "orderCode", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"orderCode": bson.M{"$gt": ""}}),
		},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(ordersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *mongoCheckoutRepo) Create(ctx context.Context, checkout *models.Checkout) error {
	if checkout.ID == uuid.Nil {
		checkout.ID = uuid.New()
	}
	if checkout.PaymentStatus == "" {
		checkout.PaymentStatus = models.PaymentStatusPending
	}
	now := time.Now().UTC()
	checkout.CreatedAt, checkout.UpdatedAt = now, now

	doc, err := toCheckoutDocument(checkout)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoCheckoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Checkout, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoCheckoutRepo) GetBySlug(ctx context.Context, slug string) (*models.Checkout, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *mongoCheckoutRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Checkout, error) {
	return r.findOne(ctx, bson.M{"orderId": orderID.String()})
}

func (r *mongoCheckoutRepo) GetByOrderCode(ctx context.Context, orderCode string) (*models.Checkout, error) {
	if orderCode == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"orderCode": orderCode})
}

func (r *mongoCheckoutRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *mongoCheckoutRepo) List(ctx context.Context, offset, limit int) ([]models.Checkout, int64, error) {
	total, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var docs []checkoutDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	items := make([]models.Checkout, 0, len(docs))
	for i := range docs {
		c, err := docs[i].toModel()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *c)
	}
	return items, total, nil
}

func (r *mongoCheckoutRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus, info models.PaymentMethodInfo) (bool, error) {
	infoDoc, err := infoToBSON(info)
	if err != nil {
		return false, err
	}
	filter := bson.M{"_id": id.String(), "paymentStatus": string(from)}
	update := bson.M{"$set": bson.M{
		"paymentStatus":     string(to),
		"paymentMethodInfo": infoDoc,
		"updatedAt":         time.Now().UTC(),
	}}

	err = r.coll.FindOneAndUpdate(ctx, filter, update).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *mongoCheckoutRepo) findOne(ctx context.Context, filter bson.M) (*models.Checkout, error) {
	var doc checkoutDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toModel()
}
