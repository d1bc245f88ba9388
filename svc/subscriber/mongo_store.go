package subscriber

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/cboard-org/cboard-billing/pkg/billing"
	mongodb "github.com/cboard-org/cboard-billing/pkg/mongo"
)

// CollectionName is the MongoDB collection holding subscribers.
const CollectionName = "subscribers"

type subscriberDoc struct {
	ID          bson.ObjectID   `bson:"_id,omitempty"`
	UserID      string          `bson:"userId"`
	Country     string          `bson:"country"`
	Status      string          `bson:"status"`
	Product     *productDoc     `bson:"product,omitempty"`
	Transaction *transactionDoc `bson:"transaction,omitempty"`
	CreatedAt   time.Time       `bson:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}

type productDoc struct {
	SubscriptionID string    `bson:"subscriptionId"`
	PlanID         string    `bson:"planId"`
	Title          string    `bson:"title,omitempty"`
	BillingPeriod  string    `bson:"billingPeriod,omitempty"`
	Price          any       `bson:"price,omitempty"`
	Status         string    `bson:"status"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

type transactionDoc struct {
	Platform             string         `bson:"platform"`
	NativePurchase       map[string]any `bson:"nativePurchase"`
	SubscriptionState    string         `bson:"subscriptionState"`
	ExpiryDate           time.Time      `bson:"expiryDate"`
	IsExpired            bool           `bson:"isExpired"`
	IsBillingRetryPeriod bool           `bson:"isBillingRetryPeriod"`
	VerifiedAt           time.Time      `bson:"verifiedAt"`
}

// MongoStore is the MongoDB implementation of Store.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore returns a store backed by the subscribers collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique index on userId.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("userId_unique"),
	})
	return err
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*Subscriber, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindByUserID(ctx context.Context, userID string) (*Subscriber, error) {
	return s.findOne(ctx, bson.M{"userId": userID})
}

func (s *MongoStore) Insert(ctx context.Context, sub *Subscriber) error {
	doc := toDoc(sub)
	doc.ID = bson.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Join(ErrDuplicate, err)
		}
		return err
	}
	sub.ID = doc.ID.Hex()
	return nil
}

func (s *MongoStore) UpdateFields(ctx context.Context, id string, f Fields) (*Subscriber, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{"updatedAt": f.UpdatedAt}
	if f.Country != nil {
		set["country"] = *f.Country
	}
	if f.Status != nil {
		set["status"] = string(*f.Status)
	}
	if f.Product != nil {
		set["product"] = toProductDoc(*f.Product)
	}
	if f.Transaction != nil {
		set["transaction"] = toTransactionDoc(f.Transaction)
	}

	var doc subscriberDoc
	err = s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, mapErr(err)
	}
	return fromDoc(&doc), nil
}

func (s *MongoStore) DeleteByID(ctx context.Context, id string) (*Subscriber, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc subscriberDoc
	if err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return fromDoc(&doc), nil
}

func (s *MongoStore) List(ctx context.Context, fn func(*Subscriber) error) error {
	cur, err := s.coll.Find(ctx, bson.M{"transaction": bson.M{"$exists": true, "$ne": nil}})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc subscriberDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		if err := fn(fromDoc(&doc)); err != nil {
			return err
		}
	}
	return cur.Err()
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*Subscriber, error) {
	var doc subscriberDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return fromDoc(&doc), nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.Join(ErrDuplicate, err)
	default:
		return err
	}
}

func toDoc(s *Subscriber) *subscriberDoc {
	doc := &subscriberDoc{
		UserID:      s.UserID,
		Country:     s.Country,
		Status:      string(s.Status),
		Transaction: toTransactionDoc(s.Transaction),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if !s.Product.IsZero() {
		p := toProductDoc(s.Product)
		doc.Product = &p
	}
	return doc
}

func toProductDoc(p Product) productDoc {
	return productDoc{
		SubscriptionID: p.SubscriptionID,
		PlanID:         p.PlanID,
		Title:          p.Title,
		BillingPeriod:  p.BillingPeriod,
		Price:          p.Price,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toTransactionDoc(t *Transaction) *transactionDoc {
	if t == nil {
		return nil
	}
	return &transactionDoc{
		Platform:             string(t.Platform),
		NativePurchase:       t.NativePurchase,
		SubscriptionState:    string(t.SubscriptionState),
		ExpiryDate:           t.ExpiryDate,
		IsExpired:            t.IsExpired,
		IsBillingRetryPeriod: t.IsBillingRetryPeriod,
		VerifiedAt:           t.VerifiedAt,
	}
}

func fromDoc(d *subscriberDoc) *Subscriber {
	s := &Subscriber{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Country:   d.Country,
		Status:    billing.LifecycleState(d.Status),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Product != nil {
		s.Product = Product{
			SubscriptionID: d.Product.SubscriptionID,
			PlanID:         d.Product.PlanID,
			Title:          d.Product.Title,
			BillingPeriod:  d.Product.BillingPeriod,
			Price:          mongodb.Plain(d.Product.Price),
			Status:         d.Product.Status,
			CreatedAt:      d.Product.CreatedAt,
			UpdatedAt:      d.Product.UpdatedAt,
		}
	}
	if t := d.Transaction; t != nil {
		s.Transaction = &Transaction{
			Platform:             billing.Platform(t.Platform),
			NativePurchase:       mongodb.PlainMap(t.NativePurchase),
			SubscriptionState:    billing.LifecycleState(t.SubscriptionState),
			ExpiryDate:           t.ExpiryDate,
			IsExpired:            t.IsExpired,
			IsBillingRetryPeriod: t.IsBillingRetryPeriod,
			VerifiedAt:           t.VerifiedAt,
		}
	}
	return s
}
