// Package features projects raw spreadsheet rows into the fixed feature
// schema the external predictor expects, while carrying identity fields
// (name, roll number, email) through untouched for the roster view.
package features

import (
	"strconv"
	"strings"

	"studentpredict/backend/internal/shared"
	"studentpredict/backend/internal/spreadsheet"
)

// ParsePolicy controls what happens when a numeric cell is present but does
// not parse as a float. Absent cells always take the field default.
type ParsePolicy string

const (
	// PolicyZero coerces malformed required numerics to 0 (legacy behavior).
	PolicyZero ParsePolicy = "zero"
	// PolicyNull treats malformed cells as if the column were absent:
	// nullable fields become null, required numerics take their 0 default.
	PolicyNull ParsePolicy = "null"
	// PolicyReject fails the whole upload, naming the row and column.
	PolicyReject ParsePolicy = "reject"
)

// Column synonym allow-lists, matched case-sensitively. Unlisted columns are
// ignored by the mapper but survive in the raw row.
var (
	attendanceCols    = []string{"attendance", "Attendance"}
	studyHoursCols    = []string{"study_hours", "study hours", "Study Hours"}
	assignmentsCols   = []string{"assignments_submitted", "assignments_completed", "assignments submitted", "assignments completed", "Assignments"}
	internalMarksCols = []string{"internal_marks", "internal marks", "Internal Marks"}
	activitiesCols    = []string{"activities", "Activities"}
	nameCols          = []string{"name", "Name", "student_name", "Student Name"}
	rollNumberCols    = []string{"roll_number", "rollNumber", "Roll Number", "Roll No"}
	emailCols         = []string{"email", "Email"}
)

// Record is one mapped row: the predictor input fields plus the preserved
// identity fields. Identity pointers are nil when the column was absent.
type Record struct {
	Attendance           float64
	StudyHours           float64
	AssignmentsSubmitted float64
	InternalMarks        *float64 // nil when absent or unparseable, never 0-defaulted
	Activities           string

	Name       *string
	RollNumber *string
	Email      *string
}

// Features returns the minimal payload sent to the external predictor,
// without any identity fields.
func (r Record) Features() map[string]interface{} {
	var marks interface{}
	if r.InternalMarks != nil {
		marks = *r.InternalMarks
	}
	return map[string]interface{}{
		"attendance":            r.Attendance,
		"study_hours":           r.StudyHours,
		"assignments_submitted": r.AssignmentsSubmitted,
		"internal_marks":        marks,
		"activities":            r.Activities,
	}
}

// StoredFeatures returns the input-feature bag persisted on a Prediction:
// the predictor features, a legacy assignments_completed echo, and the
// identity fields under both historical key spellings.
func (r Record) StoredFeatures() map[string]interface{} {
	stored := r.Features()
	stored["assignments_completed"] = r.AssignmentsSubmitted
	stored["name"] = strPtrValue(r.Name)
	stored["student_name"] = strPtrValue(r.Name)
	stored["roll_number"] = strPtrValue(r.RollNumber)
	stored["rollNumber"] = strPtrValue(r.RollNumber)
	stored["email"] = strPtrValue(r.Email)
	return stored
}

func strPtrValue(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// Mapper applies the column allow-lists and the configured parse policy.
type Mapper struct {
	OnParseFailure ParsePolicy
}

// NewMapper builds a Mapper, falling back to PolicyZero for unknown policies.
func NewMapper(policy string) *Mapper {
	switch ParsePolicy(policy) {
	case PolicyNull, PolicyReject:
		return &Mapper{OnParseFailure: ParsePolicy(policy)}
	default:
		return &Mapper{OnParseFailure: PolicyZero}
	}
}

// MapRows maps every raw row in order. Under PolicyReject the first
// malformed cell aborts the whole set.
func (m *Mapper) MapRows(rows []spreadsheet.Row) ([]Record, error) {
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		record, err := m.mapRow(i, row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (m *Mapper) mapRow(index int, row spreadsheet.Row) (Record, error) {
	record := Record{Activities: "low"}

	var err error
	if record.Attendance, err = m.requiredFloat(index, row, attendanceCols); err != nil {
		return Record{}, err
	}
	if record.StudyHours, err = m.requiredFloat(index, row, studyHoursCols); err != nil {
		return Record{}, err
	}
	if record.AssignmentsSubmitted, err = m.requiredFloat(index, row, assignmentsCols); err != nil {
		return Record{}, err
	}
	if record.InternalMarks, err = m.nullableFloat(index, row, internalMarksCols); err != nil {
		return Record{}, err
	}

	if value, _, ok := firstPresent(row, activitiesCols); ok {
		record.Activities = value
	}
	record.Name = firstPresentPtr(row, nameCols)
	record.RollNumber = firstPresentPtr(row, rollNumberCols)
	record.Email = firstPresentPtr(row, emailCols)

	return record, nil
}

// requiredFloat coalesces the first present synonym column into a float,
// defaulting to 0 when the column is absent and applying the parse policy
// when it is present but malformed.
func (m *Mapper) requiredFloat(index int, row spreadsheet.Row, columns []string) (float64, error) {
	value, column, ok := firstPresent(row, columns)
	if !ok {
		return 0, nil
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err == nil {
		return parsed, nil
	}

	if m.OnParseFailure == PolicyReject {
		return 0, shared.NewErrorf(shared.CodeInvalidArgument,
			"Row %d: column %q has non-numeric value %q", index+1, column, value)
	}
	return 0, nil
}

// nullableFloat is like requiredFloat but the absence/malformed default is
// null rather than 0.
func (m *Mapper) nullableFloat(index int, row spreadsheet.Row, columns []string) (*float64, error) {
	value, column, ok := firstPresent(row, columns)
	if !ok {
		return nil, nil
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err == nil {
		return &parsed, nil
	}

	if m.OnParseFailure == PolicyReject {
		return nil, shared.NewErrorf(shared.CodeInvalidArgument,
			"Row %d: column %q has non-numeric value %q", index+1, column, value)
	}
	return nil, nil
}

func firstPresent(row spreadsheet.Row, columns []string) (value, column string, ok bool) {
	for _, col := range columns {
		if v, exists := row[col]; exists && strings.TrimSpace(v) != "" {
			return v, col, true
		}
	}
	return "", "", false
}

func firstPresentPtr(row spreadsheet.Row, columns []string) *string {
	if v, _, ok := firstPresent(row, columns); ok {
		return &v
	}
	return nil
}
