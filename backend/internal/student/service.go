package student

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"studentpredict/backend/internal/shared"
)

// Service handles student roster CRUD. Students exist independently of
// predictions; batch rows usually stay anonymous.
type Service struct {
	db          *mongo.Database
	studentsCol *mongo.Collection
}

// NewService creates a new student Service instance
func NewService(db *mongo.Database) *Service {
	return &Service{
		db:          db,
		studentsCol: db.Collection("students"),
	}
}

// Create inserts a student record. Roll numbers are unique.
func (s *Service) Create(ctx context.Context, userID, rollNumber, department string, year int32, extraInfo map[string]interface{}) (*shared.Student, error) {
	if rollNumber == "" {
		return nil, shared.NewError(shared.CodeInvalidArgument, "Roll number is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := s.studentsCol.CountDocuments(queryCtx, bson.M{"roll_number": rollNumber})
	if err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "database error", err)
	}
	if count > 0 {
		return nil, shared.NewError(shared.CodeInvalidArgument, "Student already exists")
	}

	record := shared.Student{
		ID:         shared.GenerateID("stud"),
		UserID:     userID,
		RollNumber: rollNumber,
		Department: department,
		Year:       year,
		ExtraInfo:  extraInfo,
		CreatedAt:  time.Now(),
	}

	if _, err := s.studentsCol.InsertOne(queryCtx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, shared.NewError(shared.CodeInvalidArgument, "Student already exists")
		}
		return nil, shared.WrapError(shared.CodeInternal, "failed to create student", err)
	}

	return &record, nil
}

// List returns the newest students, capped at 200.
func (s *Service) List(ctx context.Context) ([]shared.Student, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := s.studentsCol.Find(queryCtx, bson.M{}, shared.BuildFindOptions(200, "created_at", -1))
	if err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to list students", err)
	}
	defer cursor.Close(queryCtx)

	students := []shared.Student{}
	if err := cursor.All(queryCtx, &students); err != nil {
		return nil, shared.WrapError(shared.CodeInternal, "failed to decode students", err)
	}

	return students, nil
}
