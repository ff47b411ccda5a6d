package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Audit event kinds recorded in the MongoDB audit trail.
const (
	AuditReportFiled   = "report_filed"
	AuditListingHidden = "listing_hidden"
	AuditMediaUploaded = "media_uploaded"
	AuditMediaOrphaned = "media_orphaned"
)

// AuditEvent is one moderation/ingest decision kept for admin review.
type AuditEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	Kind      string             `bson:"kind" json:"kind"`
	CatID     string             `bson:"cat_id,omitempty" json:"cat_id,omitempty"`
	UserID    string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Detail    string             `bson:"detail,omitempty" json:"detail,omitempty"`
}
