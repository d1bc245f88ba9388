package catalog

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongodb "github.com/cboard-org/cboard-billing/pkg/mongo"
)

// CollectionName is the MongoDB collection holding the catalog.
const CollectionName = "subscriptions"

type subscriptionDoc struct {
	ID             bson.ObjectID `bson:"_id,omitempty"`
	SubscriptionID string        `bson:"subscriptionId"`
	Name           string        `bson:"name"`
	Status         string        `bson:"status"`
	Platform       string        `bson:"platform"`
	Benefits       []string      `bson:"benefits"`
	Plans          []planDoc     `bson:"plans"`
	CreatedAt      time.Time     `bson:"createdAt"`
	UpdatedAt      time.Time     `bson:"updatedAt"`
}

type planDoc struct {
	Name       string    `bson:"name"`
	PlanID     string    `bson:"planId"`
	Status     string    `bson:"status"`
	Countries  []any     `bson:"countries"`
	Period     string    `bson:"period"`
	Renovation string    `bson:"renovation"`
	Tags       []string  `bson:"tags"`
	PaypalID   string    `bson:"paypalId,omitempty"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// MongoStore is the MongoDB implementation of Store.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore returns a store backed by the subscriptions collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique indexes of the catalog. The paypalId index
// only covers plans linked to PayPal.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subscriptionId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("subscriptionId_unique"),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("name_unique"),
		},
		{
			Keys:    bson.D{{Key: "plans.planId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("plans_planId_unique"),
		},
		{
			Keys: bson.D{{Key: "plans.paypalId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("plans_paypalId_unique").
				SetPartialFilterExpression(bson.M{"plans.paypalId": bson.M{"$exists": true}}),
		},
	})
	return err
}

func (s *MongoStore) FindBySubscriptionID(ctx context.Context, id string) (*Subscription, error) {
	return s.findOne(ctx, bson.M{"subscriptionId": id})
}

func (s *MongoStore) FindByPayPalPlanID(ctx context.Context, paypalID string) (*Subscription, error) {
	if paypalID == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"plans.paypalId": paypalID})
}

func (s *MongoStore) Insert(ctx context.Context, sub *Subscription) error {
	doc := toDoc(sub)
	doc.ID = bson.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return mapErr(err)
	}
	sub.ID = doc.ID.Hex()
	return nil
}

func (s *MongoStore) Replace(ctx context.Context, sub *Subscription) error {
	doc := toDoc(sub)
	doc.ID = bson.ObjectID{}

	var stored subscriptionDoc
	err := s.coll.FindOneAndReplace(ctx,
		bson.M{"subscriptionId": sub.SubscriptionID},
		doc,
		options.FindOneAndReplace().SetReturnDocument(options.After),
	).Decode(&stored)
	if err != nil {
		return mapErr(err)
	}
	sub.ID = stored.ID.Hex()
	return nil
}

func (s *MongoStore) DeleteBySubscriptionID(ctx context.Context, id string) (*Subscription, error) {
	var doc subscriptionDoc
	if err := s.coll.FindOneAndDelete(ctx, bson.M{"subscriptionId": id}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return fromDoc(&doc), nil
}

func (s *MongoStore) List(ctx context.Context, q ListQuery) ([]Subscription, int64, error) {
	q = q.Normalize()
	filter := bson.M{}
	if q.Search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(q.Search), "$options": "i"}
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	field, dir := q.SortField()
	cur, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: field, Value: dir}}).
		SetSkip(int64(q.Skip())).
		SetLimit(int64(q.Limit)),
	)
	if err != nil {
		return nil, 0, err
	}
	out, err := decodeAll(ctx, cur)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *MongoStore) All(ctx context.Context) ([]Subscription, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur)
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*Subscription, error) {
	var doc subscriptionDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return fromDoc(&doc), nil
}

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]Subscription, error) {
	var docs []subscriptionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Subscription, 0, len(docs))
	for i := range docs {
		out = append(out, *fromDoc(&docs[i]))
	}
	return out, nil
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

func toDoc(s *Subscription) *subscriptionDoc {
	doc := &subscriptionDoc{
		SubscriptionID: s.SubscriptionID,
		Name:           s.Name,
		Status:         s.Status,
		Platform:       s.Platform,
		Benefits:       s.Benefits,
		Plans:          make([]planDoc, 0, len(s.Plans)),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.ID != "" {
		if oid, err := bson.ObjectIDFromHex(s.ID); err == nil {
			doc.ID = oid
		}
	}
	for _, p := range s.Plans {
		doc.Plans = append(doc.Plans, planDoc(p))
	}
	return doc
}

func fromDoc(d *subscriptionDoc) *Subscription {
	s := &Subscription{
		ID:             d.ID.Hex(),
		SubscriptionID: d.SubscriptionID,
		Name:           d.Name,
		Status:         d.Status,
		Platform:       d.Platform,
		Benefits:       d.Benefits,
		Plans:          make([]Plan, 0, len(d.Plans)),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for _, p := range d.Plans {
		plan := Plan(p)
		plan.Countries = mongodb.PlainSlice(p.Countries)
		s.Plans = append(s.Plans, plan)
	}
	return s
}
