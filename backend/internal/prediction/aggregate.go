package prediction

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"
	"go.mongodb.org/mongo-driver/bson"

	"studentpredict/backend/internal/shared"
)

// BatchStats are the derived aggregate counts for one batch. They are never
// stored; the read side recomputes them from the child predictions.
type BatchStats struct {
	TotalStudents    int     `json:"totalStudents"`
	SafeCount        int     `json:"safeCount"`
	AtRiskCount      int     `json:"atRiskCount"`
	CriticalCount    int     `json:"criticalCount"`
	AverageRiskScore float64 `json:"averageRiskScore"`
	MaxRiskScore     float64 `json:"maxRiskScore"`
}

// BatchWithStats is a batch document joined with its derived counts.
type BatchWithStats struct {
	shared.Batch
	BatchStats
}

// UploadResult is the response body of a successful batch upload.
type UploadResult struct {
	Batch BatchWithStats `json:"batch"`
	Count int            `json:"count"`
}

// RosterEntry is one prediction formatted for the batch detail view.
type RosterEntry struct {
	ID                   string      `json:"_id"`
	Name                 string      `json:"name"`
	RollNumber           interface{} `json:"rollNumber"`
	Attendance           float64     `json:"attendance"`
	StudyHours           float64     `json:"studyHours"`
	AssignmentsCompleted float64     `json:"assignmentsCompleted"`
	InternalMarks        interface{} `json:"internalMarks"`
	Prediction           string      `json:"prediction"`
	RiskScore            int         `json:"riskScore"` // 0-100 for display
	RiskLevel            string      `json:"riskLevel"`
}

// BatchDetails is the batch detail response: the batch plus its roster.
type BatchDetails struct {
	Batch    shared.Batch  `json:"batch"`
	Students []RosterEntry `json:"students"`
}

// UserPredictionView is one saved prediction formatted for the user's
// history view.
type UserPredictionView struct {
	ID                   string    `json:"_id"`
	Attendance           float64   `json:"attendance"`
	StudyHours           float64   `json:"studyHours"`
	AssignmentsCompleted float64   `json:"assignmentsCompleted"`
	Prediction           string    `json:"prediction"`
	RiskScore            float64   `json:"riskScore"`
	RiskLevel            string    `json:"riskLevel"`
	CreatedAt            time.Time `json:"createdAt"`
	Timestamp            time.Time `json:"timestamp"`
}

// DashboardStats summarizes a faculty member's prediction activity.
type DashboardStats struct {
	TotalBatches     int64   `json:"totalBatches"`
	TotalPredictions int     `json:"totalPredictions"`
	SafeCount        int     `json:"safeCount"`
	AtRiskCount      int     `json:"atRiskCount"`
	CriticalCount    int     `json:"criticalCount"`
	AverageRiskScore float64 `json:"averageRiskScore"`
	MaxRiskScore     float64 `json:"maxRiskScore"`
}

// ComputeStats recomputes the derived counts for a set of predictions.
// Categorization goes through the shared bucket mapping so legacy category
// strings and the predictor's vocabulary count identically.
func ComputeStats(preds []shared.Prediction) BatchStats {
	result := BatchStats{TotalStudents: len(preds)}

	scores := make([]float64, 0, len(preds))
	for _, pred := range preds {
		switch shared.BucketForCategory(pred.RiskCategory) {
		case shared.BucketSafe:
			result.SafeCount++
		case shared.BucketAtRisk:
			result.AtRiskCount++
		case shared.BucketCritical:
			result.CriticalCount++
		}
		scores = append(scores, pred.RiskScore)
	}

	result.AverageRiskScore, result.MaxRiskScore = scoreStats(scores)
	return result
}

// DashboardStats aggregates the caller's batches and predictions for the
// faculty dashboard.
func (s *Service) DashboardStats(ctx context.Context, userID string) (*DashboardStats, error) {
	batchCount, err := shared.CountDocumentsWithTimeout(ctx, s.batchesCol, bson.M{"uploaded_by": userID}, 5*time.Second)
	if err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to count batches", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.predictionsCol.Find(queryCtx, bson.M{"created_by": userID}, shared.BuildFindOptions(0, "created_at", -1))
	if err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to load predictions", err)
	}
	defer cursor.Close(queryCtx)

	preds := []shared.Prediction{}
	if err := cursor.All(queryCtx, &preds); err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to decode predictions", err)
	}

	agg := ComputeStats(preds)
	return &DashboardStats{
		TotalBatches:     batchCount,
		TotalPredictions: agg.TotalStudents,
		SafeCount:        agg.SafeCount,
		AtRiskCount:      agg.AtRiskCount,
		CriticalCount:    agg.CriticalCount,
		AverageRiskScore: agg.AverageRiskScore,
		MaxRiskScore:     agg.MaxRiskScore,
	}, nil
}

// scoreStats computes mean and max risk score, treating an empty set as 0.
func scoreStats(scores []float64) (mean, max float64) {
	if len(scores) == 0 {
		return 0, 0
	}

	mean, err := stats.Mean(scores)
	if err != nil {
		mean = 0
	}
	max, err = stats.Max(scores)
	if err != nil {
		max = 0
	}

	return mean, max
}
