package mlclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentpredict/backend/internal/shared"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c := New(shared.MLConfig{
		BaseURL:       "http://ml.test",
		SingleTimeout: 5 * time.Second,
		BatchTimeout:  5 * time.Second,
	})

	httpmock.ActivateNonDefault(c.singleClient)
	httpmock.ActivateNonDefault(c.batchClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return c
}

func TestPredictSingle(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ml.test/predict/single",
		httpmock.NewStringResponder(200, `{
			"predicted_label": "at_risk",
			"risk_category": "high",
			"risk_score": 0.87,
			"feature_importance": {"attendance": 0.5}
		}`))

	result, err := c.PredictSingle(context.Background(), map[string]interface{}{"attendance": 40.0})
	require.NoError(t, err)

	assert.Equal(t, "at_risk", result.PredictedLabel)
	assert.Equal(t, "high", result.RiskCategory)
	assert.Equal(t, 0.87, result.RiskScore)
	assert.Equal(t, 0.5, result.FeatureImportance["attendance"])
}

func TestPredictSingle_UpstreamError(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ml.test/predict/single",
		httpmock.NewStringResponder(422, `{"detail": "attendance must be between 0 and 100"}`))

	_, err := c.PredictSingle(context.Background(), map[string]interface{}{"attendance": 400.0})
	require.Error(t, err)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 422, upstream.Status)
	assert.Contains(t, upstream.Error(), "ML API error (status 422)")
	assert.Contains(t, upstream.Error(), "attendance must be between 0 and 100")
}

func TestPredictBatch_ItemsEnvelope(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ml.test/predict/batch",
		httpmock.NewStringResponder(200, `{"items": [
			{"predicted_label": "safe", "risk_category": "low", "risk_score": 0.1},
			{"predicted_label": "at_risk", "risk_category": "high", "risk_score": 0.9}
		]}`))

	records := []map[string]interface{}{{"attendance": 90.0}, {"attendance": 30.0}}
	results, err := c.PredictBatch(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "low", results[0].RiskCategory)
	assert.Equal(t, 0.9, results[1].RiskScore)
}

func TestPredictBatch_BareArray(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ml.test/predict/batch",
		httpmock.NewStringResponder(200, `[
			{"predicted_label": "safe", "risk_category": "low", "risk_score": 0.2}
		]`))

	results, err := c.PredictBatch(context.Background(), []map[string]interface{}{{"attendance": 75.0}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "safe", results[0].PredictedLabel)
}

func TestPredictBatch_MalformedResponse(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ml.test/predict/batch",
		httpmock.NewStringResponder(200, `{"something": "else"}`))

	_, err := c.PredictBatch(context.Background(), []map[string]interface{}{{"attendance": 75.0}})
	require.Error(t, err)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Contains(t, upstream.Error(), "expected array of results")
}

func TestPredictBatch_CountMismatch(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ml.test/predict/batch",
		httpmock.NewStringResponder(200, `{"items": [
			{"predicted_label": "safe", "risk_category": "low", "risk_score": 0.2}
		]}`))

	records := []map[string]interface{}{{"attendance": 75.0}, {"attendance": 50.0}}
	_, err := c.PredictBatch(context.Background(), records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 1 results for 2 records")
}

func TestPredictBatch_Unreachable(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ml.test/predict/batch",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.PredictBatch(context.Background(), []map[string]interface{}{{"attendance": 75.0}})
	require.Error(t, err)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 0, upstream.Status)
	assert.Contains(t, upstream.Error(), "ML API unreachable")
}
