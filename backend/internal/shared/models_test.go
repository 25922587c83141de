package shared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketForCategory_BothVocabularies(t *testing.T) {
	cases := map[string]RiskBucket{
		"low":      BucketSafe,
		"Safe":     BucketSafe,
		"medium":   BucketAtRisk,
		"At-Risk":  BucketAtRisk,
		"high":     BucketCritical,
		"Critical": BucketCritical,
		"":         BucketUnknown,
		"banana":   BucketUnknown,
	}

	for category, want := range cases {
		assert.Equal(t, want, BucketForCategory(category), "category %q", category)
	}
}

func TestBucketForScore_Thresholds(t *testing.T) {
	assert.Equal(t, BucketSafe, BucketForScore(0))
	assert.Equal(t, BucketSafe, BucketForScore(0.30))
	assert.Equal(t, BucketAtRisk, BucketForScore(0.31))
	assert.Equal(t, BucketAtRisk, BucketForScore(0.70))
	assert.Equal(t, BucketCritical, BucketForScore(0.71))
	assert.Equal(t, BucketCritical, BucketForScore(1))
}

func TestDisplayCategory_Idempotent(t *testing.T) {
	for _, category := range []string{"low", "medium", "high", "Safe", "At-Risk", "Critical"} {
		display := DisplayCategory(category)
		assert.Equal(t, display, DisplayCategory(display), "display form should be a fixed point")
	}

	assert.Equal(t, "Safe", DisplayCategory("unknown"))
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "Fail", DisplayLabel("at_risk"))
	assert.Equal(t, "Pass", DisplayLabel("safe"))
	assert.Equal(t, "Pass", DisplayLabel(""))
}

func TestGenerateID(t *testing.T) {
	id := GenerateBatchID()
	assert.True(t, strings.HasPrefix(id, "batch_"))
	assert.NotEqual(t, id, GenerateBatchID())
	assert.True(t, strings.HasPrefix(GeneratePredictionID(), "pred_"))
}
