package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"studentpredict/backend/internal/mlclient"
	"studentpredict/backend/internal/shared"
)

// initService connects to the real database and points the ML client at the
// given fake predictor. Tests are skipped when no MONGO_URI is configured.
func initService(t *testing.T, mlURL string) (*Service, *mongo.Database) {
	t.Helper()

	if err := godotenv.Load("../../cmd/server/.env"); err != nil {
		log.Println("No .env file found, using system environment")
	}
	if os.Getenv("MONGO_URI") == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	os.Setenv("JWT_SECRET", shared.GetEnv("JWT_SECRET", "integration-test-secret"))
	os.Setenv("MONGO_DB_NAME", shared.GetEnv("MONGO_DB_NAME", "student_predictor_test"))

	cfg, err := shared.LoadAppConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg.ML.BaseURL = mlURL

	_, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	return NewService(db, cfg, mlclient.New(cfg.ML)), db
}

// fakePredictor serves /predict/batch with fixed index-aligned scores.
func fakePredictor(t *testing.T, scores []float64, categories []string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Records []map[string]interface{} `json:"records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}

		items := make([]map[string]interface{}, len(payload.Records))
		for i := range payload.Records {
			label := "safe"
			if scores[i] > 0.5 {
				label = "at_risk"
			}
			items[i] = map[string]interface{}{
				"predicted_label": label,
				"risk_category":   categories[i],
				"risk_score":      scores[i],
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
	}))
}

func buildTestWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestBatchPipeline_Integration(t *testing.T) {
	ml := fakePredictor(t, []float64{0.1, 0.5, 0.9}, []string{"low", "medium", "high"})
	defer ml.Close()

	service, db := initService(t, ml.URL)
	ctx := context.Background()

	testUserID := "test_pred_user_001"
	cleanup := func() {
		db.Collection("batches").DeleteMany(ctx, bson.M{"uploaded_by": testUserID})
		db.Collection("predictions").DeleteMany(ctx, bson.M{"created_by": testUserID})
		db.Collection("activity_logs").DeleteMany(ctx, bson.M{"user": testUserID})
	}
	cleanup()
	defer cleanup()

	fileData := buildTestWorkbook(t, [][]interface{}{
		{"name", "roll_number", "attendance", "study_hours", "assignments_submitted", "internal_marks"},
		{"Alice", "CS-001", 95, 6, 9, 80},
		{"Bob", "CS-002", 70, 3, 5, 55},
		{"Carol", "CS-003", 40, 1, 1, 20},
	})

	var batchID string

	// --- 1. Upload ---
	t.Run("Upload Batch", func(t *testing.T) {
		result, err := service.UploadBatch(ctx, testUserID, "Midterm Cohort", "midterm.xlsx", fileData)
		if err != nil {
			t.Fatalf("UploadBatch failed: %v", err)
		}
		batchID = result.Batch.ID

		if result.Count != 3 {
			t.Errorf("Expected 3 predictions, got %d", result.Count)
		}
		if result.Batch.Status != shared.BatchCompleted {
			t.Errorf("Expected completed status, got %s", result.Batch.Status)
		}

		agg := result.Batch.BatchStats
		if agg.SafeCount != 1 || agg.AtRiskCount != 1 || agg.CriticalCount != 1 {
			t.Errorf("Unexpected bucket counts: %+v", agg)
		}
		if agg.MaxRiskScore != 0.9 {
			t.Errorf("Expected max 0.9, got %v", agg.MaxRiskScore)
		}
	})

	// --- 2. Read Side ---
	t.Run("List Batches", func(t *testing.T) {
		batches, err := service.ListBatches(ctx, testUserID)
		if err != nil {
			t.Fatalf("ListBatches failed: %v", err)
		}
		if len(batches) != 1 || batches[0].ID != batchID {
			t.Fatalf("Expected the uploaded batch, got %+v", batches)
		}
		if batches[0].TotalStudents != 3 {
			t.Errorf("Expected 3 students, got %d", batches[0].TotalStudents)
		}
	})

	t.Run("Batch Details Roster", func(t *testing.T) {
		details, err := service.GetBatchDetails(ctx, batchID)
		if err != nil {
			t.Fatalf("GetBatchDetails failed: %v", err)
		}
		if len(details.Students) != 3 {
			t.Fatalf("Expected 3 roster entries, got %d", len(details.Students))
		}

		byName := map[string]RosterEntry{}
		for _, entry := range details.Students {
			byName[entry.Name] = entry
		}
		carol, ok := byName["Carol"]
		if !ok {
			t.Fatal("Carol missing from roster")
		}
		if carol.RiskScore != 90 || carol.RiskLevel != "Critical" || carol.Prediction != "Fail" {
			t.Errorf("Unexpected Carol entry: %+v", carol)
		}
	})

	t.Run("Details Unknown Batch", func(t *testing.T) {
		_, err := service.GetBatchDetails(ctx, "batch_does_not_exist")
		if shared.CodeOf(err) != shared.CodeNotFound {
			t.Errorf("Expected not found, got %v", err)
		}
	})

	// --- 3. Dashboard ---
	t.Run("Dashboard Stats", func(t *testing.T) {
		dash, err := service.DashboardStats(ctx, testUserID)
		if err != nil {
			t.Fatalf("DashboardStats failed: %v", err)
		}
		if dash.TotalBatches != 1 || dash.TotalPredictions != 3 {
			t.Errorf("Unexpected dashboard: %+v", dash)
		}
	})

	// --- 4. Delete Cascade ---
	t.Run("Delete Forbidden For Stranger", func(t *testing.T) {
		err := service.DeleteBatch(ctx, batchID, "someone_else", shared.RoleFaculty)
		if shared.CodeOf(err) != shared.CodePermissionDenied {
			t.Errorf("Expected permission denied, got %v", err)
		}
	})

	t.Run("Delete Cascade", func(t *testing.T) {
		if err := service.DeleteBatch(ctx, batchID, testUserID, shared.RoleFaculty); err != nil {
			t.Fatalf("DeleteBatch failed: %v", err)
		}

		count, err := db.Collection("predictions").CountDocuments(ctx, bson.M{"batch": batchID})
		if err != nil {
			t.Fatalf("CountDocuments failed: %v", err)
		}
		if count != 0 {
			t.Errorf("Expected 0 child predictions after delete, got %d", count)
		}

		if err := service.DeleteBatch(ctx, batchID, testUserID, shared.RoleFaculty); shared.CodeOf(err) != shared.CodeNotFound {
			t.Errorf("Expected not found on second delete, got %v", err)
		}
	})
}

func TestBatchPipeline_FailedUpstream(t *testing.T) {
	// A predictor that returns garbage flips the batch to failed and leaves
	// no prediction documents behind.
	ml := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": true}`))
	}))
	defer ml.Close()

	service, db := initService(t, ml.URL)
	ctx := context.Background()

	testUserID := "test_pred_user_002"
	cleanup := func() {
		db.Collection("batches").DeleteMany(ctx, bson.M{"uploaded_by": testUserID})
		db.Collection("predictions").DeleteMany(ctx, bson.M{"created_by": testUserID})
	}
	cleanup()
	defer cleanup()

	fileData := buildTestWorkbook(t, [][]interface{}{
		{"name", "attendance"},
		{"Solo", 50},
	})

	_, err := service.UploadBatch(ctx, testUserID, "Doomed Batch", "doomed.xlsx", fileData)
	if err == nil {
		t.Fatal("Expected upstream failure, got nil")
	}

	var batch shared.Batch
	if err := db.Collection("batches").FindOne(ctx, bson.M{"uploaded_by": testUserID}).Decode(&batch); err != nil {
		t.Fatalf("Batch record missing: %v", err)
	}
	if batch.Status != shared.BatchFailed {
		t.Errorf("Expected failed status, got %s", batch.Status)
	}

	count, _ := db.Collection("predictions").CountDocuments(ctx, bson.M{"batch": batch.ID})
	if count != 0 {
		t.Errorf("Expected no predictions for failed batch, got %d", count)
	}
}

func TestUploadBatch_EmptyWorkbook(t *testing.T) {
	ml := fakePredictor(t, nil, nil)
	defer ml.Close()

	service, _ := initService(t, ml.URL)

	fileData := buildTestWorkbook(t, [][]interface{}{
		{"name", "attendance"},
	})

	_, err := service.UploadBatch(context.Background(), "test_pred_user_003", "Empty", "empty.xlsx", fileData)
	if shared.CodeOf(err) != shared.CodeInvalidArgument {
		t.Fatalf("Expected invalid argument, got %v", err)
	}
	if shared.MessageOf(err) != "Excel file is empty or could not be parsed" {
		t.Errorf("Unexpected message: %q", shared.MessageOf(err))
	}
}

func TestSaveUserPrediction_Integration(t *testing.T) {
	ml := fakePredictor(t, nil, nil)
	defer ml.Close()

	service, db := initService(t, ml.URL)
	ctx := context.Background()

	testUserID := "test_pred_user_004"
	cleanup := func() {
		db.Collection("predictions").DeleteMany(ctx, bson.M{"created_by": testUserID})
		db.Collection("activity_logs").DeleteMany(ctx, bson.M{"user": testUserID})
	}
	cleanup()
	defer cleanup()

	saved, err := service.SaveUserPrediction(ctx, testUserID, SaveInput{
		Attendance:           88,
		StudyHours:           4,
		AssignmentsCompleted: 7,
		Prediction:           "Fail",
		RiskLevel:            "At-Risk",
		RiskScore:            0.6,
	})
	if err != nil {
		t.Fatalf("SaveUserPrediction failed: %v", err)
	}
	if saved.PredictedLabel != "Fail" || saved.RiskCategory != "At-Risk" {
		t.Errorf("Unexpected saved prediction: %+v", saved)
	}

	// Defaults kick in when the client sends no labels.
	defaulted, err := service.SaveUserPrediction(ctx, testUserID, SaveInput{Attendance: 90})
	if err != nil {
		t.Fatalf("SaveUserPrediction failed: %v", err)
	}
	if defaulted.PredictedLabel != "Pass" || defaulted.RiskCategory != "Safe" {
		t.Errorf("Expected Pass/Safe defaults, got %+v", defaulted)
	}

	views, err := service.ListUserPredictions(ctx, testUserID)
	if err != nil {
		t.Fatalf("ListUserPredictions failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(views))
	}
	if views[0].Attendance != 90 {
		t.Errorf("Expected newest first, got %+v", views[0])
	}
}
