package prediction

import (
	"context"
	"log"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"studentpredict/backend/internal/features"
	"studentpredict/backend/internal/mlclient"
	"studentpredict/backend/internal/shared"
	"studentpredict/backend/internal/spreadsheet"
)

// Service drives the batch pipeline (upload -> parse -> map -> remote
// predict -> persist) and the single-prediction path, and owns the
// read-side views over the predictions collection.
type Service struct {
	db             *mongo.Database
	config         *shared.AppConfig
	ml             *mlclient.Client
	mapper         *features.Mapper
	batchesCol     *mongo.Collection
	predictionsCol *mongo.Collection
	logsCol        *mongo.Collection
}

// NewService creates a new prediction Service instance
func NewService(db *mongo.Database, config *shared.AppConfig, ml *mlclient.Client) *Service {
	return &Service{
		db:             db,
		config:         config,
		ml:             ml,
		mapper:         features.NewMapper(config.Features.ParsePolicy),
		batchesCol:     db.Collection("batches"),
		predictionsCol: db.Collection("predictions"),
		logsCol:        db.Collection("activity_logs"),
	}
}

// ============================================================================
// Single Prediction Path
// ============================================================================

// CreateSingle runs one gateway call and persists one prediction document.
// Failures propagate directly; nothing is written on failure.
func (s *Service) CreateSingle(ctx context.Context, userID, studentID string, inputFeatures map[string]interface{}) (*shared.Prediction, error) {
	result, err := s.ml.PredictSingle(ctx, inputFeatures)
	if err != nil {
		return nil, err
	}

	doc := shared.Prediction{
		ID:                shared.GeneratePredictionID(),
		StudentID:         studentID,
		InputFeatures:     inputFeatures,
		PredictedLabel:    result.PredictedLabel,
		RiskCategory:      result.RiskCategory,
		RiskScore:         result.RiskScore,
		FeatureImportance: result.FeatureImportance,
		CreatedBy:         userID,
		CreatedAt:         time.Now(),
	}

	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.predictionsCol.InsertOne(insertCtx, doc); err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to save prediction", err)
	}

	shared.LogActivity(ctx, s.logsCol, userID, shared.ActionSinglePredictionCreated, map[string]interface{}{
		"predictionId": doc.ID,
	})

	return &doc, nil
}

// ============================================================================
// Batch Pipeline
// ============================================================================

// UploadBatch runs the full pipeline for one uploaded workbook: parse rows,
// map features, create the batch record (status moves straight to
// processing), call the predictor once for the whole set, and bulk-insert
// the zipped results. Terminal statuses are final; there is no retry or
// resume.
func (s *Service) UploadBatch(ctx context.Context, userID, name, fileName string, fileData []byte) (*UploadResult, error) {
	rows, err := spreadsheet.ParseWorkbook(fileData)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, shared.NewError(shared.CodeInvalidArgument, "Excel file is empty or could not be parsed")
	}

	log.Printf("Parsed %d rows from uploaded file %s", len(rows), fileName)

	records, err := s.mapper.MapRows(rows)
	if err != nil {
		return nil, err
	}

	batch := shared.Batch{
		ID:         shared.GenerateBatchID(),
		Name:       name,
		UploadedBy: userID,
		FileName:   fileName,
		Status:     shared.BatchProcessing,
		CreatedAt:  time.Now(),
	}

	createCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.batchesCol.InsertOne(createCtx, batch); err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to create batch", err)
	}

	docs, err := s.runBatch(ctx, userID, &batch, records)
	if err != nil {
		return nil, err
	}

	batch.Status = shared.BatchCompleted
	return &UploadResult{
		Batch: BatchWithStats{Batch: batch, BatchStats: ComputeStats(docs)},
		Count: len(docs),
	}, nil
}

// runBatch performs the predict-and-persist half of the pipeline against an
// already-created batch. Any failure flips the batch to failed and nothing
// is persisted: the insert is all-or-nothing, with no partial rows.
func (s *Service) runBatch(ctx context.Context, userID string, batch *shared.Batch, records []features.Record) ([]shared.Prediction, error) {
	s.setBatchStatus(ctx, batch.ID, shared.BatchProcessing)

	featuresOnly := make([]map[string]interface{}, len(records))
	for i, record := range records {
		featuresOnly[i] = record.Features()
	}

	results, err := s.ml.PredictBatch(ctx, featuresOnly)
	if err != nil {
		s.setBatchStatus(ctx, batch.ID, shared.BatchFailed)
		return nil, err
	}

	// Zip results back onto records by index. The client has already
	// verified length equality, so results[i] belongs to records[i].
	now := time.Now()
	docs := make([]shared.Prediction, len(results))
	inserts := make([]interface{}, len(results))
	for i, result := range results {
		importance := result.FeatureImportance
		if importance == nil {
			importance = map[string]float64{}
		}
		docs[i] = shared.Prediction{
			ID:                shared.GeneratePredictionID(),
			BatchID:           batch.ID,
			InputFeatures:     records[i].StoredFeatures(),
			PredictedLabel:    result.PredictedLabel,
			RiskCategory:      result.RiskCategory,
			RiskScore:         result.RiskScore,
			FeatureImportance: importance,
			CreatedBy:         userID,
			CreatedAt:         now,
		}
		inserts[i] = docs[i]
	}

	insertCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := s.predictionsCol.InsertMany(insertCtx, inserts); err != nil {
		s.setBatchStatus(ctx, batch.ID, shared.BatchFailed)
		return nil, shared.WrapError(shared.CodeInternal, "failed to save batch predictions", err)
	}

	s.setBatchStatus(ctx, batch.ID, shared.BatchCompleted)

	shared.LogActivity(ctx, s.logsCol, userID, shared.ActionBatchPredictionCompleted, map[string]interface{}{
		"batchId": batch.ID,
		"count":   len(docs),
	})

	return docs, nil
}

// setBatchStatus updates the batch lifecycle status. Status writes in the
// failure path must not mask the original error, so problems are only logged.
func (s *Service) setBatchStatus(ctx context.Context, batchID, status string) {
	updateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.batchesCol.UpdateOne(updateCtx, bson.M{"_id": batchID}, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now()},
	})
	if err != nil {
		log.Printf("Warning: Failed to set batch %s status to %s: %v", batchID, status, err)
	}
}

// ============================================================================
// Batch Read Side
// ============================================================================

// ListBatches returns the caller's newest batches (capped at 100), each with
// aggregate counts recomputed from its child predictions.
func (s *Service) ListBatches(ctx context.Context, userID string) ([]BatchWithStats, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.batchesCol.Find(queryCtx, bson.M{"uploaded_by": userID}, shared.BuildFindOptions(100, "created_at", -1))
	if err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to list batches", err)
	}
	defer cursor.Close(queryCtx)

	batches := []shared.Batch{}
	if err := cursor.All(queryCtx, &batches); err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to decode batches", err)
	}

	result := make([]BatchWithStats, 0, len(batches))
	for _, batch := range batches {
		preds, err := s.batchPredictions(ctx, batch.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, BatchWithStats{Batch: batch, BatchStats: ComputeStats(preds)})
	}

	return result, nil
}

// GetBatchDetails returns a batch with its predictions formatted as the
// roster the frontend renders.
func (s *Service) GetBatchDetails(ctx context.Context, batchID string) (*BatchDetails, error) {
	var batch shared.Batch
	err := shared.FindOneWithTimeout(ctx, s.batchesCol, bson.M{"_id": batchID}, &batch, 5*time.Second)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, shared.NewError(shared.CodeNotFound, "Batch not found")
		}
		return nil, shared.WrapError(shared.CodeInternal, "database error", err)
	}

	preds, err := s.batchPredictions(ctx, batchID)
	if err != nil {
		return nil, err
	}

	students := make([]RosterEntry, 0, len(preds))
	for _, pred := range preds {
		students = append(students, rosterEntry(pred))
	}

	return &BatchDetails{Batch: batch, Students: students}, nil
}

// DeleteBatch removes a batch and every prediction referencing it. Only the
// owner or an admin may delete; the cascade touches nothing else.
func (s *Service) DeleteBatch(ctx context.Context, batchID, userID, role string) error {
	var batch shared.Batch
	err := shared.FindOneWithTimeout(ctx, s.batchesCol, bson.M{"_id": batchID}, &batch, 5*time.Second)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return shared.NewError(shared.CodeNotFound, "Batch not found")
		}
		return shared.WrapError(shared.CodeInternal, "database error", err)
	}

	if batch.UploadedBy != userID && role != shared.RoleAdmin {
		return shared.NewError(shared.CodePermissionDenied, "You do not have permission to delete this batch")
	}

	deleteCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.predictionsCol.DeleteMany(deleteCtx, bson.M{"batch": batchID}); err != nil {
		return shared.WrapError(shared.CodeInternal, "failed to delete batch predictions", err)
	}
	if _, err := s.batchesCol.DeleteOne(deleteCtx, bson.M{"_id": batchID}); err != nil {
		return shared.WrapError(shared.CodeInternal, "failed to delete batch", err)
	}

	shared.LogActivity(ctx, s.logsCol, userID, shared.ActionBatchDeleted, map[string]interface{}{
		"batchId": batchID,
	})

	return nil
}

// batchPredictions fetches all child predictions of a batch, newest first.
func (s *Service) batchPredictions(ctx context.Context, batchID string) ([]shared.Prediction, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.predictionsCol.Find(queryCtx, bson.M{"batch": batchID}, shared.BuildFindOptions(0, "created_at", -1))
	if err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to load batch predictions", err)
	}
	defer cursor.Close(queryCtx)

	preds := []shared.Prediction{}
	if err := cursor.All(queryCtx, &preds); err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to decode predictions", err)
	}

	return preds, nil
}

// ============================================================================
// Saved Predictions (client-computed)
// ============================================================================

// SaveInput is a prediction already computed on the client, persisted for
// the user's history view.
type SaveInput struct {
	Attendance           float64
	StudyHours           float64
	AssignmentsCompleted float64
	InternalMarks        *float64
	Prediction           string
	RiskLevel            string
	RiskScore            float64
}

// SaveUserPrediction persists a client-computed prediction without calling
// the external predictor.
func (s *Service) SaveUserPrediction(ctx context.Context, userID string, in SaveInput) (*shared.Prediction, error) {
	var marks interface{}
	if in.InternalMarks != nil {
		marks = *in.InternalMarks
	}

	label := in.Prediction
	if label == "" {
		label = "Pass"
	}
	category := in.RiskLevel
	if category == "" {
		category = "Safe"
	}

	doc := shared.Prediction{
		ID: shared.GeneratePredictionID(),
		InputFeatures: map[string]interface{}{
			"attendance":            in.Attendance,
			"study_hours":           in.StudyHours,
			"assignments_completed": in.AssignmentsCompleted,
			"internal_marks":        marks,
		},
		PredictedLabel: label,
		RiskCategory:   category,
		RiskScore:      in.RiskScore,
		CreatedBy:      userID,
		CreatedAt:      time.Now(),
	}

	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.predictionsCol.InsertOne(insertCtx, doc); err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to save prediction", err)
	}

	shared.LogActivity(ctx, s.logsCol, userID, shared.ActionPredictionSaved, map[string]interface{}{
		"predictionId": doc.ID,
	})

	return &doc, nil
}

// ListUserPredictions returns the caller's newest predictions (capped at
// 100), formatted for the history view.
func (s *Service) ListUserPredictions(ctx context.Context, userID string) ([]UserPredictionView, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.predictionsCol.Find(queryCtx, bson.M{"created_by": userID}, shared.BuildFindOptions(100, "created_at", -1))
	if err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to list predictions", err)
	}
	defer cursor.Close(queryCtx)

	preds := []shared.Prediction{}
	if err := cursor.All(queryCtx, &preds); err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to decode predictions", err)
	}

	views := make([]UserPredictionView, 0, len(preds))
	for _, pred := range preds {
		label := pred.PredictedLabel
		if label == "" {
			label = "Pass"
		}
		category := pred.RiskCategory
		if category == "" {
			category = "Safe"
		}
		views = append(views, UserPredictionView{
			ID:                   pred.ID,
			Attendance:           featureFloat(pred.InputFeatures, "attendance"),
			StudyHours:           featureFloat(pred.InputFeatures, "study_hours", "studyHours"),
			AssignmentsCompleted: featureFloat(pred.InputFeatures, "assignments_completed", "assignmentsCompleted"),
			Prediction:           label,
			RiskScore:            pred.RiskScore,
			RiskLevel:            category,
			CreatedAt:            pred.CreatedAt,
			Timestamp:            pred.CreatedAt,
		})
	}

	return views, nil
}

// ListAllPredictions returns the newest predictions across all users,
// capped at 100.
func (s *Service) ListAllPredictions(ctx context.Context) ([]shared.Prediction, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.predictionsCol.Find(queryCtx, bson.M{}, shared.BuildFindOptions(100, "created_at", -1))
	if err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to list predictions", err)
	}
	defer cursor.Close(queryCtx)

	preds := []shared.Prediction{}
	if err := cursor.All(queryCtx, &preds); err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to decode predictions", err)
	}

	return preds, nil
}

// ============================================================================
// View Formatting Helpers
// ============================================================================

// rosterEntry formats a stored prediction into the shape the batch detail
// view renders, tolerating both historical input-feature key spellings.
func rosterEntry(pred shared.Prediction) RosterEntry {
	f := pred.InputFeatures
	if f == nil {
		f = map[string]interface{}{}
	}

	name := featureString(f, "name", "student_name")
	if name == "" {
		name = "Student " + pred.ID
	}

	return RosterEntry{
		ID:                   pred.ID,
		Name:                 name,
		RollNumber:           featureValue(f, "roll_number", "rollNumber"),
		Attendance:           featureFloat(f, "attendance"),
		StudyHours:           featureFloat(f, "study_hours", "studyHours"),
		AssignmentsCompleted: featureFloat(f, "assignments_completed", "assignmentsCompleted"),
		InternalMarks:        featureValue(f, "internal_marks", "internalMarks"),
		Prediction:           shared.DisplayLabel(pred.PredictedLabel),
		RiskScore:            int(math.Round(pred.RiskScore * 100)),
		RiskLevel:            shared.DisplayCategory(pred.RiskCategory),
	}
}

func featureValue(f map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := f[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func featureFloat(f map[string]interface{}, keys ...string) float64 {
	switch v := featureValue(f, keys...).(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func featureString(f map[string]interface{}, keys ...string) string {
	if v, ok := featureValue(f, keys...).(string); ok {
		return v
	}
	return ""
}
