package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/resultportal/internal/model"
)

type resultDoc struct {
	Correct        int     `bson:"correct_answers"`
	Wrong          int     `bson:"wrong_answers"`
	Unattempted    int     `bson:"unattempted"`
	FinalScore     float64 `bson:"final_score"`
	TotalQuestions int     `bson:"total_questions"`
	Percentage     float64 `bson:"percentage"`
}

type studentDoc struct {
	RollNo    string     `bson:"_id"`
	Name      string     `bson:"name"`
	DOB       time.Time  `bson:"dob"`
	Mobile    string     `bson:"mobile"`
	Post      string     `bson:"post"`
	OMRPath   string     `bson:"omr_path,omitempty"`
	Result    *resultDoc `bson:"result,omitempty"`
	Active    bool       `bson:"active"`
	CreatedAt time.Time  `bson:"created_at"`
}

func toStudentDoc(st model.Student) studentDoc {
	d := studentDoc{
		RollNo:    st.RollNo,
		Name:      st.Name,
		DOB:       st.DOB.UTC(),
		Mobile:    st.Mobile,
		Post:      string(st.Post),
		OMRPath:   st.OMRPath,
		Result:    toResultDoc(st.Result),
		Active:    st.Active,
		CreatedAt: st.CreatedAt.UTC(),
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	return d
}

func toResultDoc(r *model.ResultSummary) *resultDoc {
	if r == nil {
		return nil
	}
	return &resultDoc{
		Correct:        r.Correct,
		Wrong:          r.Wrong,
		Unattempted:    r.Unattempted,
		FinalScore:     r.FinalScore,
		TotalQuestions: r.TotalQuestions,
		Percentage:     r.Percentage,
	}
}

func (d studentDoc) model() model.Student {
	st := model.Student{
		RollNo:    d.RollNo,
		Name:      d.Name,
		DOB:       d.DOB.UTC(),
		Mobile:    d.Mobile,
		Post:      model.Post(d.Post),
		OMRPath:   d.OMRPath,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
	}
	if d.Result != nil {
		st.Result = &model.ResultSummary{
			Correct:        d.Result.Correct,
			Wrong:          d.Result.Wrong,
			Unattempted:    d.Result.Unattempted,
			FinalScore:     d.Result.FinalScore,
			TotalQuestions: d.Result.TotalQuestions,
			Percentage:     d.Result.Percentage,
		}
	}
	return st
}

// GetStudent returns the student with the given roll number, or nil.
func (s *Store) GetStudent(ctx context.Context, rollNo string) (*model.Student, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var d studentDoc
	err := s.students.FindOne(ctx, bson.M{"_id": rollNo}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st := d.model()
	return &st, nil
}

// ListStudents returns all students, newest first.
func (s *Store) ListStudents(ctx context.Context) ([]model.Student, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.students.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []studentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	students := make([]model.Student, 0, len(docs))
	for _, d := range docs {
		students = append(students, d.model())
	}
	return students, nil
}

// CreateStudent inserts a new student.
func (s *Store) CreateStudent(ctx context.Context, st model.Student) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.students.InsertOne(ctx, toStudentDoc(st))
	if mongo.IsDuplicateKeyError(err) {
		return model.Duplicate("student", st.RollNo)
	}
	return err
}

// UpdateStudent replaces the identity fields of a student.
func (s *Store) UpdateStudent(ctx context.Context, rollNo string, u model.StudentUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.students.UpdateOne(ctx, bson.M{"_id": rollNo}, bson.M{"$set": bson.M{
		"name":   u.Name,
		"dob":    u.DOB.UTC(),
		"mobile": u.Mobile,
		"post":   string(u.Post),
	}})
	if err != nil {
		return err
	}
	return matched(res, "student", rollNo)
}

// SetStudentOMR records the OMR file path. An empty path unsets it.
func (s *Store) SetStudentOMR(ctx context.Context, rollNo, path string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"omr_path": path}}
	if path == "" {
		update = bson.M{"$unset": bson.M{"omr_path": ""}}
	}
	res, err := s.students.UpdateOne(ctx, bson.M{"_id": rollNo}, update)
	if err != nil {
		return err
	}
	return matched(res, "student", rollNo)
}

// SetStudentResult attaches a result summary. A nil summary unsets it.
func (s *Store) SetStudentResult(ctx context.Context, rollNo string, r *model.ResultSummary) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"result": toResultDoc(r)}}
	if r == nil {
		update = bson.M{"$unset": bson.M{"result": ""}}
	}
	res, err := s.students.UpdateOne(ctx, bson.M{"_id": rollNo}, update)
	if err != nil {
		return err
	}
	return matched(res, "student", rollNo)
}

// DeleteStudent removes a student record.
func (s *Store) DeleteStudent(ctx context.Context, rollNo string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.students.DeleteOne(ctx, bson.M{"_id": rollNo})
	if err != nil {
		return err
	}
	return deleted(res, "student", rollNo)
}

// CountStudents counts students matching f.
func (s *Store) CountStudents(ctx context.Context, f model.StudentFilter) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{}
	if f.Post != "" {
		filter["post"] = string(f.Post)
	}
	if f.WithOMR {
		filter["omr_path"] = bson.M{"$exists": true, "$ne": ""}
	}
	if f.WithResults {
		filter["result"] = bson.M{"$exists": true, "$ne": nil}
	}
	if f.ActiveOnly {
		filter["active"] = true
	}
	n, err := s.students.CountDocuments(ctx, filter)
	return int(n), err
}

// ActivateCohort deactivates students created before dayStart and
// activates those created in [dayStart, dayEnd).
func (s *Store) ActivateCohort(ctx context.Context, dayStart, dayEnd time.Time) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.students.UpdateMany(ctx,
		bson.M{"created_at": bson.M{"$lt": dayStart.UTC()}, "active": true},
		bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return 0, 0, err
	}
	deactivated := res.ModifiedCount

	res, err = s.students.UpdateMany(ctx,
		bson.M{"created_at": bson.M{"$gte": dayStart.UTC(), "$lt": dayEnd.UTC()}, "active": false},
		bson.M{"$set": bson.M{"active": true}})
	if err != nil {
		return deactivated, 0, err
	}
	return deactivated, res.ModifiedCount, nil
}
