package docstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrInvalidID = errors.New("invalid document id")
)

// Filter — одно условие выборки.
type Filter struct {
	Field string
	Op    string // "==", "!=", "<", "<=", ">", ">="
	Value interface{}
}

// Query описывает выборку по коллекции: условия, сортировка, лимит.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int64
}

// Change — одно событие подписки на коллекцию.
type Change struct {
	Operation string // "insert", "update", "delete", ...
	ID        string
	Doc       bson.M
}

// Store — клиент документного хранилища. Create назначает created_at и
// updated_at сам, вызывающий их не задает.
type Store interface {
	Create(ctx context.Context, collection string, doc interface{}) (string, error)
	Get(ctx context.Context, collection, id string) (bson.M, error)
	List(ctx context.Context, collection string) ([]bson.M, error)
	Query(ctx context.Context, collection string, q Query) ([]bson.M, error)
	Update(ctx context.Context, collection, id string, fields bson.M) error
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, collection string) (<-chan Change, error)
}

type mongoStore struct {
	db  *mongo.Database
	now func() time.Time
}

func NewMongoStore(db *mongo.Database) Store {
	return &mongoStore{db: db, now: time.Now}
}

func (s *mongoStore) Create(ctx context.Context, collection string, doc interface{}) (string, error) {
	fields, err := toFields(doc)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	fields["created_at"] = now
	fields["updated_at"] = now

	res, err := s.db.Collection(collection).InsertOne(ctx, fields)
	if err != nil {
		return "", err
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("unexpected insert id type")
	}
	return id.Hex(), nil
}

func (s *mongoStore) Get(ctx context.Context, collection, id string) (bson.M, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	var doc bson.M
	err = s.db.Collection(collection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return withID(doc), nil
}

func (s *mongoStore) List(ctx context.Context, collection string) ([]bson.M, error) {
	return s.findMany(ctx, collection, bson.M{}, nil)
}

func (s *mongoStore) Query(ctx context.Context, collection string, q Query) ([]bson.M, error) {
	filter := bson.M{}
	for _, f := range q.Filters {
		op, err := mongoOp(f.Op)
		if err != nil {
			return nil, err
		}
		filter[f.Field] = bson.M{op: f.Value}
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	return s.findMany(ctx, collection, filter, opts)
}

func (s *mongoStore) Update(ctx context.Context, collection, id string, fields bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	update := bson.M{}
	for k, v := range fields {
		update[k] = v
	}
	update["updated_at"] = s.now().UTC()

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": update})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) Delete(ctx context.Context, collection, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Subscribe открывает change stream по коллекции. Канал закрывается при отмене
// контекста или ошибке потока.
func (s *mongoStore) Subscribe(ctx context.Context, collection string) (<-chan Change, error) {
	stream, err := s.db.Collection(collection).Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, err
	}

	changes := make(chan Change)

	go func() {
		defer close(changes)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var ev struct {
				OperationType string `bson:"operationType"`
				DocumentKey   struct {
					ID primitive.ObjectID `bson:"_id"`
				} `bson:"documentKey"`
				FullDocument bson.M `bson:"fullDocument"`
			}
			if err := stream.Decode(&ev); err != nil {
				return
			}

			change := Change{
				Operation: ev.OperationType,
				ID:        ev.DocumentKey.ID.Hex(),
			}
			if ev.FullDocument != nil {
				change.Doc = withID(ev.FullDocument)
			}

			select {
			case changes <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	return changes, nil
}

func (s *mongoStore) findMany(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions) ([]bson.M, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = s.db.Collection(collection).Find(ctx, filter, opts)
	} else {
		cur, err = s.db.Collection(collection).Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []bson.M
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, withID(doc))
	}

	if err := cur.Err(); err != nil {
		return nil, err
	}

	return docs, nil
}

// toFields преобразует произвольный документ в bson.M, чтобы хранилище могло
// добавить служебные поля.
func toFields(doc interface{}) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "_id")
	return fields, nil
}

// withID дублирует _id в строковое поле id, как того ждут клиенты.
func withID(doc bson.M) bson.M {
	if objectID, ok := doc["_id"].(primitive.ObjectID); ok {
		doc["id"] = objectID.Hex()
	}
	return doc
}

func mongoOp(op string) (string, error) {
	switch op {
	case "==", "":
		return "$eq", nil
	case "!=":
		return "$ne", nil
	case "<":
		return "$lt", nil
	case "<=":
		return "$lte", nil
	case ">":
		return "$gt", nil
	case ">=":
		return "$gte", nil
	}
	return "", errors.New("unsupported query operator: " + op)
}
