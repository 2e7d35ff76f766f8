package mongostore

import (
	"context"
	"errors"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDoc struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	Email               string             `bson:"email"`
	Name                string             `bson:"name"`
	Phone               string             `bson:"phone"`
	PasswordHash        string             `bson:"passwordHash"`
	Role                string             `bson:"role"`
	RefreshTokenHash    string             `bson:"refreshTokenHash"`
	ResetTokenHash      string             `bson:"resetTokenHash"`
	ResetTokenExpiresAt *time.Time         `bson:"resetTokenExpiresAt"`
	CreatedAt           time.Time          `bson:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt"`
}

func (d userDoc) record() stayAuth.UserRecord {
	u := stayAuth.UserRecord{
		ID:               d.ID.Hex(),
		Email:            d.Email,
		Name:             d.Name,
		Phone:            d.Phone,
		PasswordHash:     d.PasswordHash,
		Role:             stayAuth.Role(d.Role),
		RefreshTokenHash: d.RefreshTokenHash,
		ResetTokenHash:   d.ResetTokenHash,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.ResetTokenExpiresAt != nil {
		u.ResetTokenExpiresAt = *d.ResetTokenExpiresAt
	}
	return u
}

// Users implements stayAuth.UserStore on the "users" collection.
type Users struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ stayAuth.UserStore = (*Users)(nil)

func NewUsers(db *mongo.Database) *Users {
	return &Users{coll: db.Collection(usersCollection), now: time.Now}
}

func (s *Users) CreateUser(ctx context.Context, input stayAuth.CreateUserInput) (stayAuth.UserRecord, error) {
	now := s.now().UTC()
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Email:        stayAuth.NormalizeEmail(input.Email),
		Name:         input.Name,
		Phone:        input.Phone,
		PasswordHash: input.PasswordHash,
		Role:         string(input.Role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stayAuth.UserRecord{}, stayAuth.ErrAccountExists
		}
		return stayAuth.UserRecord{}, wrap("insert user", err)
	}
	return doc.record(), nil
}

func (s *Users) GetUserByEmail(ctx context.Context, email string) (stayAuth.UserRecord, error) {
	return s.findOne(ctx, bson.M{"email": stayAuth.NormalizeEmail(email)})
}

func (s *Users) GetUserByID(ctx context.Context, userID string) (stayAuth.UserRecord, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *Users) SetRefreshTokenHash(ctx context.Context, userID, hash string) error {
	return s.updateByID(ctx, userID, bson.M{"refreshTokenHash": hash})
}

// RotateRefreshTokenHash only matches while the stored hash is still
// current, so of two racing rotations exactly one sees MatchedCount 1.
func (s *Users) RotateRefreshTokenHash(ctx context.Context, userID, current, next string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil || current == "" {
		return stayAuth.ErrRefreshHashMismatch
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "refreshTokenHash": current},
		bson.M{"$set": bson.M{"refreshTokenHash": next, "updatedAt": s.now().UTC()}},
	)
	if err != nil {
		return wrap("rotate refresh hash", err)
	}
	if res.MatchedCount == 0 {
		return stayAuth.ErrRefreshHashMismatch
	}
	return nil
}

func (s *Users) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return s.updateByID(ctx, userID, bson.M{"passwordHash": hash})
}

func (s *Users) SetResetToken(ctx context.Context, userID, hash string, expiresAt time.Time) error {
	exp := expiresAt.UTC()
	return s.updateByID(ctx, userID, bson.M{"resetTokenHash": hash, "resetTokenExpiresAt": &exp})
}

func (s *Users) GetUserByResetToken(ctx context.Context, hash string, now time.Time) (stayAuth.UserRecord, error) {
	if hash == "" {
		return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{
		"resetTokenHash":      hash,
		"resetTokenExpiresAt": bson.M{"$gt": now.UTC()},
	})
}

func (s *Users) ConsumeResetToken(ctx context.Context, hash string, now time.Time, newPasswordHash string) (stayAuth.UserRecord, error) {
	if hash == "" {
		return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
	}
	filter := bson.M{
		"resetTokenHash":      hash,
		"resetTokenExpiresAt": bson.M{"$gt": now.UTC()},
	}
	update := bson.M{"$set": bson.M{
		"passwordHash":        newPasswordHash,
		"resetTokenHash":      "",
		"resetTokenExpiresAt": nil,
		"updatedAt":           s.now().UTC(),
	}}
	return s.findOneAndUpdate(ctx, filter, update)
}

func (s *Users) UpdateProfile(ctx context.Context, userID string, update stayAuth.ProfileUpdate) (stayAuth.UserRecord, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
	}
	set := bson.M{"updatedAt": s.now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
}

func (s *Users) findOne(ctx context.Context, filter bson.M) (stayAuth.UserRecord, error) {
	var doc userDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
		}
		return stayAuth.UserRecord{}, wrap("find user", err)
	}
	return doc.record(), nil
}

func (s *Users) findOneAndUpdate(ctx context.Context, filter, update bson.M) (stayAuth.UserRecord, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDoc
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return stayAuth.UserRecord{}, stayAuth.ErrUserNotFound
		}
		return stayAuth.UserRecord{}, wrap("update user", err)
	}
	return doc.record(), nil
}

func (s *Users) updateByID(ctx context.Context, userID string, set bson.M) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return stayAuth.ErrUserNotFound
	}
	set["updatedAt"] = s.now().UTC()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return wrap("update user", err)
	}
	if res.MatchedCount == 0 {
		return stayAuth.ErrUserNotFound
	}
	return nil
}
