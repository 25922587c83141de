// ============================================================================
// backend/internal/shared/models.go
// Shared data models and structs for MongoDB documents
// ============================================================================

package shared

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// User Models
// ============================================================================

// User represents a user account (student, faculty, or admin)
type User struct {
	ID           string    `bson:"_id" json:"_id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password" json:"-"` // Never expose in JSON
	Role         string    `bson:"role" json:"role"`  // student, faculty, admin
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// Student represents a student record, independent of predictions.
// A prediction may reference a student but batch rows commonly stay anonymous.
type Student struct {
	ID         string                 `bson:"_id" json:"_id"`
	UserID     string                 `bson:"user" json:"user"`
	RollNumber string                 `bson:"roll_number" json:"rollNumber"`
	Department string                 `bson:"department,omitempty" json:"department,omitempty"`
	Year       int32                  `bson:"year,omitempty" json:"year,omitempty"`
	ExtraInfo  map[string]interface{} `bson:"extra_info,omitempty" json:"extraInfo,omitempty"`
	CreatedAt  time.Time              `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time              `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// ============================================================================
// Batch and Prediction Models
// ============================================================================

// Batch represents a named collection of rows submitted together for bulk
// prediction. Aggregate counts are derived at read time, never stored here.
type Batch struct {
	ID         string    `bson:"_id" json:"_id"`
	Name       string    `bson:"name" json:"name"`
	UploadedBy string    `bson:"uploaded_by" json:"uploadedBy"`
	FileName   string    `bson:"file_name,omitempty" json:"fileName,omitempty"`
	Status     string    `bson:"status" json:"status"` // pending, processing, completed, failed
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// Prediction stores one inference result. InputFeatures is a free-form bag:
// the numeric predictor features plus optional identity fields (name,
// roll_number, email) preserved so the UI can render a roster without
// re-querying the students collection.
type Prediction struct {
	ID                string                 `bson:"_id" json:"_id"`
	StudentID         string                 `bson:"student,omitempty" json:"student,omitempty"`
	BatchID           string                 `bson:"batch,omitempty" json:"batch,omitempty"`
	InputFeatures     map[string]interface{} `bson:"input_features" json:"inputFeatures"`
	PredictedLabel    string                 `bson:"predicted_label,omitempty" json:"predictedLabel,omitempty"`
	RiskCategory      string                 `bson:"risk_category,omitempty" json:"riskCategory,omitempty"`
	RiskScore         float64                `bson:"risk_score" json:"riskScore"`
	FeatureImportance map[string]float64     `bson:"feature_importance,omitempty" json:"featureImportance,omitempty"`
	CreatedBy         string                 `bson:"created_by" json:"createdBy"`
	CreatedAt         time.Time              `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time              `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// ============================================================================
// Activity Log Models
// ============================================================================

// ActivityLog represents an append-only audit entry. The pipeline writes
// these but never reads them back.
type ActivityLog struct {
	ID        string                 `bson:"_id" json:"_id"`
	UserID    string                 `bson:"user,omitempty" json:"user,omitempty"`
	Action    string                 `bson:"action" json:"action"`
	Meta      map[string]interface{} `bson:"meta,omitempty" json:"meta,omitempty"`
	CreatedAt time.Time              `bson:"created_at" json:"createdAt"`
}

// ============================================================================
// Validation Constants
// ============================================================================

const (
	// User roles
	RoleStudent = "student"
	RoleFaculty = "faculty"
	RoleAdmin   = "admin"

	// Batch lifecycle statuses
	BatchPending    = "pending"
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"

	// Activity actions
	ActionSinglePredictionCreated  = "single_prediction_created"
	ActionBatchPredictionCompleted = "batch_prediction_completed"
	ActionPredictionSaved          = "prediction_saved"
	ActionBatchDeleted             = "batch_deleted"
)

// IsValidRole checks if user role is valid
func IsValidRole(role string) bool {
	validRoles := map[string]bool{
		RoleStudent: true, RoleFaculty: true, RoleAdmin: true,
	}
	return validRoles[role]
}

// IsValidBatchStatus checks if a batch lifecycle status is valid
func IsValidBatchStatus(status string) bool {
	validStatuses := map[string]bool{
		BatchPending: true, BatchProcessing: true, BatchCompleted: true, BatchFailed: true,
	}
	return validStatuses[status]
}

// ============================================================================
// Risk Buckets
//
// The predictor encodes categories as low/medium/high while the display
// layer uses Safe/At-Risk/Critical. Both vocabularies map onto the same
// three buckets here so the thresholds and synonyms live in one place.
// ============================================================================

// RiskBucket is one of the three buckets a prediction falls into.
type RiskBucket string

const (
	BucketSafe     RiskBucket = "safe"
	BucketAtRisk   RiskBucket = "atRisk"
	BucketCritical RiskBucket = "critical"
	BucketUnknown  RiskBucket = ""
)

// Risk score thresholds (0-1 continuous, inclusive upper boundaries).
const (
	SafeScoreCeiling   = 0.30
	AtRiskScoreCeiling = 0.70
)

// BucketForCategory maps a risk category string onto a bucket, accepting
// both the predictor vocabulary and the legacy display vocabulary.
func BucketForCategory(category string) RiskBucket {
	switch category {
	case "Safe", "low":
		return BucketSafe
	case "At-Risk", "medium":
		return BucketAtRisk
	case "Critical", "high":
		return BucketCritical
	default:
		return BucketUnknown
	}
}

// BucketForScore maps a continuous risk score in [0,1] onto a bucket.
func BucketForScore(score float64) RiskBucket {
	switch {
	case score <= SafeScoreCeiling:
		return BucketSafe
	case score <= AtRiskScoreCeiling:
		return BucketAtRisk
	default:
		return BucketCritical
	}
}

// DisplayCategory converts any known category string to the display
// vocabulary (Safe, At-Risk, Critical). Unknown categories render as Safe,
// matching the frontend's fallback.
func DisplayCategory(category string) string {
	switch BucketForCategory(category) {
	case BucketCritical:
		return "Critical"
	case BucketAtRisk:
		return "At-Risk"
	default:
		return "Safe"
	}
}

// DisplayLabel converts a predicted label to the Pass/Fail display form.
func DisplayLabel(predictedLabel string) string {
	if predictedLabel == "at_risk" {
		return "Fail"
	}
	return "Pass"
}

// ============================================================================
// ID Generation Helpers
// ============================================================================

// GenerateID generates a unique prefixed document ID
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// GenerateBatchID generates a batch ID
func GenerateBatchID() string {
	return GenerateID("batch")
}

// GeneratePredictionID generates a prediction ID
func GeneratePredictionID() string {
	return GenerateID("pred")
}
