package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pawhaven/pawhaven-backend/internal/database"
	"github.com/pawhaven/pawhaven-backend/internal/models"
)

const auditCollection = "audit_events"

// RecordAudit appends one moderation/media event to the audit trail.
// The trail is best-effort: when Mongo is not connected the event is
// logged and dropped rather than failing the request.
func RecordAudit(kind string, catID, userID, detail string) error {
	if database.DB == nil {
		log.Printf("audit (no mongo): %s cat=%s user=%s %s", kind, catID, userID, detail)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := models.AuditEvent{
		ID:        primitive.NewObjectID(),
		CreatedAt: time.Now(),
		Kind:      kind,
		CatID:     catID,
		UserID:    userID,
		Detail:    detail,
	}

	_, err := database.DB.Collection(auditCollection).InsertOne(ctx, event)
	return err
}

// CountAuditEvents returns how many events of a kind were recorded for a cat.
func CountAuditEvents(kind string, catID string) (int64, error) {
	if database.DB == nil {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return database.DB.Collection(auditCollection).CountDocuments(ctx, bson.M{
		"kind":   kind,
		"cat_id": catID,
	})
}

// EnsureAuditIndexes creates the indexes the audit queries rely on.
func EnsureAuditIndexes() error {
	if database.DB == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := database.DB.Collection(auditCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "cat_id", Value: 1}, {Key: "kind", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	return err
}

// CleanupOldAuditEvents removes events older than the given number of days.
func CleanupOldAuditEvents(daysOld int) error {
	if database.DB == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-time.Duration(daysOld) * 24 * time.Hour)

	result, err := database.DB.Collection(auditCollection).DeleteMany(ctx, bson.M{
		"created_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return err
	}

	if result.DeletedCount > 0 {
		log.Printf("Cleaned up %d audit events older than %d days", result.DeletedCount, daysOld)
	}
	return nil
}

// StartAuditCleanup runs CleanupOldAuditEvents periodically in the background.
func StartAuditCleanup(intervalHours int, ageDays int) {
	if intervalHours <= 0 {
		intervalHours = 24
	}
	if ageDays <= 0 {
		ageDays = 90
	}

	go func() {
		ticker := time.NewTicker(time.Duration(intervalHours) * time.Hour)
		defer ticker.Stop()

		_ = CleanupOldAuditEvents(ageDays)

		for range ticker.C {
			_ = CleanupOldAuditEvents(ageDays)
		}
	}()
}
