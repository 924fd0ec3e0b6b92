package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/shop-auth-api/internal/model"
)

// UsersCollection holds one document per registered identity.
const UsersCollection = "users"

// IdentityStore is the persistence contract for registered identities.
// Only FindByEmail returns the password hash; every other read strips it.
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (*model.Identity, error)
	FindByEmail(ctx context.Context, email string) (*model.Identity, error)
	Create(ctx context.Context, u *model.Identity) error
	UpdateRoles(ctx context.Context, id string, roles []string) (*model.Identity, error)
	RemoveRole(ctx context.Context, id, role, fallback string) (*model.Identity, error)
	UpdateName(ctx context.Context, id, name string) (*model.Identity, error)
	DeleteByID(ctx context.Context, id string) error
	List(ctx context.Context, f model.IdentityFilter) ([]model.Identity, int64, error)
}

type IdentityRepo struct{ C *mongo.Collection }

func NewIdentityRepo(db *mongo.Database) *IdentityRepo {
	return &IdentityRepo{C: db.Collection(UsersCollection)}
}

var withoutPassword = bson.D{{Key: "_id", Value: 0}, {Key: "userPassword", Value: 0}}

// EnsureIndexes creates the unique userId and userEmail indexes.
func (r *IdentityRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.C.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true).SetName(userIDIndex)},
		{Keys: bson.D{{Key: "userEmail", Value: 1}}, Options: options.Index().SetUnique(true).SetName(userEmailIndex)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

func (r *IdentityRepo) findOne(ctx context.Context, filter bson.D, projection bson.D) (*model.Identity, error) {
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}
	var u model.Identity
	if err := r.C.FindOne(ctx, filter, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByID fetches an identity by its external id, without the hash.
func (r *IdentityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	return r.findOne(ctx, bson.D{{Key: "userId", Value: id}}, withoutPassword)
}

// FindByEmail fetches an identity by normalized email, including the
// password hash for credential checks.
func (r *IdentityRepo) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.findOne(ctx, bson.D{{Key: "userEmail", Value: email}}, bson.D{{Key: "_id", Value: 0}})
}

// Unique index names. Duplicate-key errors name the index they hit.
const (
	userIDIndex    = "uniq_userId"
	userEmailIndex = "uniq_userEmail"
)

const duplicateKeyCode = 11000

// insertError classifies an InsertOne failure. Only a collision on the
// email index is a conflict; a userId collision is an internal failure.
func insertError(err error) error {
	var se mongo.ServerError
	if errors.As(err, &se) {
		// userEmail_1 is the default name on databases indexed before the
		// indexes were named.
		if se.HasErrorCodeWithMessage(duplicateKeyCode, userEmailIndex) ||
			se.HasErrorCodeWithMessage(duplicateKeyCode, "index: userEmail_1 ") {
			return ErrEmailExists
		}
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert identity: user id collision: %w", err)
	}
	return fmt.Errorf("insert identity: %w", err)
}

// Create inserts u. A duplicate email maps to ErrEmailExists.
func (r *IdentityRepo) Create(ctx context.Context, u *model.Identity) error {
	u.UserEmail = strings.ToLower(strings.TrimSpace(u.UserEmail))
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if _, err := r.C.InsertOne(ctx, u); err != nil {
		return insertError(err)
	}
	return nil
}

func (r *IdentityRepo) findOneAndUpdate(ctx context.Context, id string, update any) (*model.Identity, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutPassword)
	var u model.Identity
	err := r.C.FindOneAndUpdate(ctx, bson.D{{Key: "userId", Value: id}}, update, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdateRoles replaces the role set in a single atomic update.
func (r *IdentityRepo) UpdateRoles(ctx context.Context, id string, roles []string) (*model.Identity, error) {
	return r.findOneAndUpdate(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "roles", Value: roles},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}})
}

// RemoveRole drops role server-side. If the set ends up empty, fallback is
// written instead, all within one pipeline update.
func (r *IdentityRepo) RemoveRole(ctx context.Context, id, role, fallback string) (*model.Identity, error) {
	remaining := bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$roles", bson.A{}}}}},
		{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", role}}}},
	}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "roles", Value: bson.D{{Key: "$let", Value: bson.D{
				{Key: "vars", Value: bson.D{{Key: "left", Value: remaining}}},
				{Key: "in", Value: bson.D{{Key: "$cond", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$size", Value: "$$left"}}, 0}}},
					bson.A{fallback},
					"$$left",
				}}}},
			}}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
	}
	return r.findOneAndUpdate(ctx, id, pipeline)
}

// UpdateName changes the display name only.
func (r *IdentityRepo) UpdateName(ctx context.Context, id, name string) (*model.Identity, error) {
	return r.findOneAndUpdate(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "userName", Value: name},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}})
}

// DeleteByID removes an identity.
func (r *IdentityRepo) DeleteByID(ctx context.Context, id string) error {
	res, err := r.C.DeleteOne(ctx, bson.D{{Key: "userId", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of identities, newest first, with the total match
// count. The count and the page query run concurrently.
func (r *IdentityRepo) List(ctx context.Context, f model.IdentityFilter) ([]model.Identity, int64, error) {
	filter := identityFilter(f)
	page, limit := PageBounds(f.Page, f.Limit)

	var (
		users []model.Identity
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.C.CountDocuments(gctx, filter)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		opts := options.Find().
			SetProjection(withoutPassword).
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip((page - 1) * limit).
			SetLimit(limit)
		cur, err := r.C.Find(gctx, filter, opts)
		if err != nil {
			return fmt.Errorf("find users: %w", err)
		}
		out := make([]model.Identity, 0, limit)
		if err := cur.All(gctx, &out); err != nil {
			return fmt.Errorf("decode users: %w", err)
		}
		users = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func identityFilter(f model.IdentityFilter) bson.D {
	filter := bson.D{}
	if s := strings.TrimSpace(f.Search); s != "" {
		re := bson.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "userName", Value: re}},
			bson.D{{Key: "userEmail", Value: re}},
		}})
	}
	if f.Role != "" {
		filter = append(filter, bson.E{Key: "roles", Value: f.Role})
	}
	return filter
}

// PageBounds clamps page to >= 1 and limit to 1..100, defaulting to 10.
func PageBounds(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
