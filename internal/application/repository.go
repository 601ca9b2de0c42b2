package application

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ApplicationRepository handles DB operations for applications, invites and
// NDA signatures.
type ApplicationRepository struct {
	applications *mongo.Collection
	invites      *mongo.Collection
	ndas         *mongo.Collection
}

// NewApplicationRepository creates a new repository over the three collections.
func NewApplicationRepository(db *mongo.Database) *ApplicationRepository {
	return &ApplicationRepository{
		applications: db.Collection("applications"),
		invites:      db.Collection("invites"),
		ndas:         db.Collection("ndas"),
	}
}

// CreateApplication inserts a new application. A duplicate-key rejection from
// the unique pending index surfaces as ErrDuplicatePending.
func (r *ApplicationRepository) CreateApplication(ctx context.Context, app *Application) error {
	_, err := r.applications.InsertOne(ctx, app)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicatePending
		}
		return err
	}
	return nil
}

func (r *ApplicationRepository) FindApplicationByID(ctx context.Context, id string) (*Application, error) {
	var app Application
	err := r.applications.FindOne(ctx, bson.M{"_id": id}).Decode(&app)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

// FindPendingByStudentAndListing returns the student's pending application for
// a listing, or nil when there is none.
func (r *ApplicationRepository) FindPendingByStudentAndListing(ctx context.Context, studentID, listingID string) (*Application, error) {
	var app Application
	filter := bson.M{"student_id": studentID, "listing_id": listingID, "status": StatusPending}
	err := r.applications.FindOne(ctx, filter).Decode(&app)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

func (r *ApplicationRepository) FindApplicationByTransactionID(ctx context.Context, transactionID string) (*Application, error) {
	var app Application
	err := r.applications.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&app)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

// FindApplicationsByStudent returns a student's applications newest-first.
func (r *ApplicationRepository) FindApplicationsByStudent(ctx context.Context, studentID string) ([]*Application, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cursor, err := r.applications.Find(ctx, bson.M{"student_id": studentID}, opts)
	if err != nil {
		return nil, err
	}
	var apps []*Application
	if err := cursor.All(ctx, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// FindApplicationsByListing returns a listing's applications newest-first,
// optionally filtered by status.
func (r *ApplicationRepository) FindApplicationsByListing(ctx context.Context, listingID, status string) ([]*Application, error) {
	filter := bson.M{"listing_id": listingID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cursor, err := r.applications.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var apps []*Application
	if err := cursor.All(ctx, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// DecideApplication moves a pending application to status, recording reviewer
// notes. The pending filter makes the status change atomic: a second decide
// matches nothing and returns nil.
func (r *ApplicationRepository) DecideApplication(ctx context.Context, id, status, reviewerNotes string) (*Application, error) {
	filter := bson.M{"_id": id, "status": StatusPending}
	update := bson.M{"$set": bson.M{"status": status, "reviewer_notes": reviewerNotes}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var app Application
	err := r.applications.FindOneAndUpdate(ctx, filter, update, opts).Decode(&app)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

func (r *ApplicationRepository) CreateInvite(ctx context.Context, invite *Invite) error {
	_, err := r.invites.InsertOne(ctx, invite)
	return err
}

func (r *ApplicationRepository) FindInviteByID(ctx context.Context, id string) (*Invite, error) {
	var invite Invite
	err := r.invites.FindOne(ctx, bson.M{"_id": id}).Decode(&invite)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &invite, nil
}

// UpdateInviteStatus moves a pending invite to status, optionally recording
// the transaction created by the student's response. Returns the updated
// invite, or nil when the invite was not pending.
func (r *ApplicationRepository) UpdateInviteStatus(ctx context.Context, id, status, transactionID string) (*Invite, error) {
	set := bson.M{"status": status}
	if transactionID != "" {
		set["transaction_id"] = transactionID
	}
	filter := bson.M{"_id": id, "status": InviteStatusPending}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var invite Invite
	err := r.invites.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&invite)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &invite, nil
}

func (r *ApplicationRepository) FindInvitesByStudent(ctx context.Context, studentID string) ([]*Invite, error) {
	return r.findInvites(ctx, bson.M{"student_id": studentID})
}

func (r *ApplicationRepository) FindInvitesByPartner(ctx context.Context, partnerID string) ([]*Invite, error) {
	return r.findInvites(ctx, bson.M{"corporate_partner_id": partnerID})
}

func (r *ApplicationRepository) findInvites(ctx context.Context, filter bson.M) ([]*Invite, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.invites.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var invites []*Invite
	if err := cursor.All(ctx, &invites); err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *ApplicationRepository) CreateNDASignature(ctx context.Context, sig *NDASignature) error {
	_, err := r.ndas.InsertOne(ctx, sig)
	return err
}

func (r *ApplicationRepository) HasSignedNDA(ctx context.Context, studentID, listingID string) (bool, error) {
	count, err := r.ndas.CountDocuments(ctx, bson.M{"student_id": studentID, "listing_id": listingID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
