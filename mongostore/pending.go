package mongostore

import (
	"context"
	"errors"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type pendingDoc struct {
	Email         string    `bson:"email"`
	Name          string    `bson:"name"`
	Phone         string    `bson:"phone"`
	PasswordHash  string    `bson:"passwordHash"`
	Role          string    `bson:"role"`
	TermsAccepted bool      `bson:"termsAccepted"`
	OTPHash       string    `bson:"otpHash"`
	OTPExpiresAt  time.Time `bson:"otpExpiresAt"`
	OTPVerified   bool      `bson:"otpVerified"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

func (d pendingDoc) record() stayAuth.PendingSignup {
	return stayAuth.PendingSignup{
		Email:         d.Email,
		Name:          d.Name,
		Phone:         d.Phone,
		PasswordHash:  d.PasswordHash,
		Role:          stayAuth.Role(d.Role),
		TermsAccepted: d.TermsAccepted,
		OTPHash:       d.OTPHash,
		OTPExpiresAt:  d.OTPExpiresAt,
		OTPVerified:   d.OTPVerified,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// PendingSignups implements stayAuth.PendingSignupStore on the
// "pendingsignups" collection.
type PendingSignups struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ stayAuth.PendingSignupStore = (*PendingSignups)(nil)

func NewPendingSignups(db *mongo.Database) *PendingSignups {
	return &PendingSignups{coll: db.Collection(pendingCollection), now: time.Now}
}

// UpsertPending replaces every field except createdAt, which is kept from
// the first request.
func (s *PendingSignups) UpsertPending(ctx context.Context, p stayAuth.PendingSignup) error {
	email := stayAuth.NormalizeEmail(p.Email)
	now := s.now().UTC()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	update := bson.M{
		"$set": bson.M{
			"email":         email,
			"name":          p.Name,
			"phone":         p.Phone,
			"passwordHash":  p.PasswordHash,
			"role":          string(p.Role),
			"termsAccepted": p.TermsAccepted,
			"otpHash":       p.OTPHash,
			"otpExpiresAt":  p.OTPExpiresAt.UTC(),
			"otpVerified":   p.OTPVerified,
			"updatedAt":     now,
		},
		"$setOnInsert": bson.M{"createdAt": createdAt.UTC()},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"email": email}, update, options.Update().SetUpsert(true))
	if err != nil {
		return wrap("upsert pending signup", err)
	}
	return nil
}

func (s *PendingSignups) GetPending(ctx context.Context, email string) (stayAuth.PendingSignup, error) {
	var doc pendingDoc
	err := s.coll.FindOne(ctx, bson.M{"email": stayAuth.NormalizeEmail(email)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return stayAuth.PendingSignup{}, stayAuth.ErrPendingNotFound
		}
		return stayAuth.PendingSignup{}, wrap("find pending signup", err)
	}
	return doc.record(), nil
}

func (s *PendingSignups) DeletePending(ctx context.Context, email string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"email": stayAuth.NormalizeEmail(email)}); err != nil {
		return wrap("delete pending signup", err)
	}
	return nil
}

func (s *PendingSignups) ConsumePending(ctx context.Context, email, otpHash string) (stayAuth.PendingSignup, error) {
	var doc pendingDoc
	filter := bson.M{"email": stayAuth.NormalizeEmail(email), "otpHash": otpHash}
	if err := s.coll.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return stayAuth.PendingSignup{}, stayAuth.ErrPendingNotFound
		}
		return stayAuth.PendingSignup{}, wrap("consume pending signup", err)
	}
	doc.OTPVerified = true
	return doc.record(), nil
}
