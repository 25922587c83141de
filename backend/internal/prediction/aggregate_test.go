package prediction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"studentpredict/backend/internal/shared"
)

func TestComputeStats(t *testing.T) {
	preds := []shared.Prediction{
		{RiskCategory: "low", RiskScore: 0.10},
		{RiskCategory: "At-Risk", RiskScore: 0.50},
		{RiskCategory: "high", RiskScore: 0.90},
		{RiskCategory: "Critical", RiskScore: 0.80},
	}

	agg := ComputeStats(preds)
	assert.Equal(t, 4, agg.TotalStudents)
	assert.Equal(t, 1, agg.SafeCount)
	assert.Equal(t, 1, agg.AtRiskCount)
	assert.Equal(t, 2, agg.CriticalCount)
	assert.InDelta(t, 0.575, agg.AverageRiskScore, 1e-9)
	assert.Equal(t, 0.90, agg.MaxRiskScore)
}

func TestComputeStats_Empty(t *testing.T) {
	agg := ComputeStats(nil)
	assert.Equal(t, 0, agg.TotalStudents)
	assert.Equal(t, 0.0, agg.AverageRiskScore)
	assert.Equal(t, 0.0, agg.MaxRiskScore)
}

func TestComputeStats_UnknownCategoryNotCounted(t *testing.T) {
	agg := ComputeStats([]shared.Prediction{{RiskCategory: "???", RiskScore: 0.4}})
	assert.Equal(t, 1, agg.TotalStudents)
	assert.Equal(t, 0, agg.SafeCount+agg.AtRiskCount+agg.CriticalCount)
}

func TestRosterEntry_Formatting(t *testing.T) {
	marks := 61.0
	pred := shared.Prediction{
		ID:             "pred_x1",
		PredictedLabel: "at_risk",
		RiskCategory:   "high",
		RiskScore:      0.876,
		InputFeatures: map[string]interface{}{
			"name":                  "Dina",
			"roll_number":           "EE-007",
			"attendance":            55.0,
			"study_hours":           2.5,
			"assignments_completed": 3.0,
			"internal_marks":        marks,
		},
	}

	entry := rosterEntry(pred)
	assert.Equal(t, "Dina", entry.Name)
	assert.Equal(t, "EE-007", entry.RollNumber)
	assert.Equal(t, 55.0, entry.Attendance)
	assert.Equal(t, "Fail", entry.Prediction)
	assert.Equal(t, "Critical", entry.RiskLevel)
	assert.Equal(t, 88, entry.RiskScore, "score is rounded to a 0-100 int")
}

func TestRosterEntry_LegacyKeysAndFallbacks(t *testing.T) {
	pred := shared.Prediction{
		ID:             "pred_x2",
		PredictedLabel: "safe",
		RiskCategory:   "Safe",
		RiskScore:      0.12,
		InputFeatures: map[string]interface{}{
			"studyHours":           4.0,
			"assignmentsCompleted": 9.0,
		},
	}

	entry := rosterEntry(pred)
	assert.Equal(t, "Student pred_x2", entry.Name)
	assert.Nil(t, entry.RollNumber)
	assert.Equal(t, 4.0, entry.StudyHours)
	assert.Equal(t, 9.0, entry.AssignmentsCompleted)
	assert.Equal(t, "Pass", entry.Prediction)
	assert.Equal(t, "Safe", entry.RiskLevel)
	assert.Equal(t, 12, entry.RiskScore)
}

func TestRosterEntry_NilFeatures(t *testing.T) {
	entry := rosterEntry(shared.Prediction{ID: "pred_x3"})
	assert.Equal(t, "Student pred_x3", entry.Name)
	assert.Equal(t, 0.0, entry.Attendance)
}
