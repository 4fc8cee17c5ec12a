package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-core/internal/models"
	appErrors "github.com/noah-isme/academic-core/pkg/errors"
)

// Default component weights.
var (
	weightsWithHomework    = models.GradeWeights{Midterm: 0.30, Final: 0.50, Homework: 0.20}
	weightsWithoutHomework = models.GradeWeights{Midterm: 0.40, Final: 0.60}
)

// Passing threshold for a finalised grade point.
const passingGradePoint = 1.0

type gradeBand struct {
	floor  float64
	letter models.LetterGrade
	point  float64
}

// Bands are closed at the floor and open at the next band's floor.
var gradeBands = []gradeBand{
	{90, models.GradeAA, 4.0},
	{85, models.GradeBA, 3.5},
	{80, models.GradeBB, 3.0},
	{75, models.GradeCB, 2.5},
	{70, models.GradeCC, 2.0},
	{65, models.GradeDC, 1.5},
	{60, models.GradeDD, 1.0},
	{50, models.GradeFD, 0.5},
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeAverage weights the components and rounds to two decimals. Midterm and
// final are required. weights overrides the defaults; without homework the
// midterm and final weights are rescaled to sum to one.
func ComputeAverage(components models.GradeComponents, weights *models.GradeWeights) (float64, error) {
	avg, err := weightedAverage(components, weights)
	if err != nil {
		return 0, err
	}
	return round2(avg), nil
}

func weightedAverage(components models.GradeComponents, weights *models.GradeWeights) (float64, error) {
	if components.Midterm == nil || components.Final == nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "midterm and final are required to compute an average")
	}
	if fields := outOfRangeFields(components); len(fields) > 0 {
		return 0, appErrors.WithDetails(appErrors.ErrInvalidGradeRange, "", map[string]interface{}{"fields": fields})
	}

	w := weightsWithoutHomework
	if components.Homework != nil {
		w = weightsWithHomework
	}
	if weights != nil {
		if err := validateWeights(*weights); err != nil {
			return 0, err
		}
		w = *weights
		if components.Homework == nil {
			sum := w.Midterm + w.Final
			if sum == 0 {
				return 0, appErrors.Clone(appErrors.ErrValidation, "weights leave no midterm or final contribution")
			}
			w = models.GradeWeights{Midterm: w.Midterm / sum, Final: w.Final / sum}
		}
	}

	avg := w.Midterm**components.Midterm + w.Final**components.Final
	if components.Homework != nil {
		avg += w.Homework * *components.Homework
	}
	return avg, nil
}

func validateWeights(w models.GradeWeights) error {
	if w.Midterm < 0 || w.Final < 0 || w.Homework < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "weights must not be negative")
	}
	if math.Abs(w.Midterm+w.Final+w.Homework-1) > 1e-9 {
		return appErrors.Clone(appErrors.ErrValidation, "weights must sum to 1")
	}
	return nil
}

func outOfRangeFields(c models.GradeComponents) []string {
	var fields []string
	check := func(name string, v *float64) {
		if v != nil && (*v < 0 || *v > 100 || math.IsNaN(*v)) {
			fields = append(fields, name)
		}
	}
	check("midterm", c.Midterm)
	check("final", c.Final)
	check("homework", c.Homework)
	return fields
}

// LetterGrade maps an average to its band.
func LetterGrade(average float64) models.LetterGrade {
	for _, band := range gradeBands {
		if average >= band.floor {
			return band.letter
		}
	}
	return models.GradeFF
}

// GradePoint maps a letter to its point value. Unknown letters score zero.
func GradePoint(letter models.LetterGrade) float64 {
	for _, band := range gradeBands {
		if band.letter == letter {
			return band.point
		}
	}
	return 0
}

// AggregateGPA builds the academic summary from graded attempts. Every attempt
// counts, repeats included. Semesters are ordered by year, then spring, summer, fall.
func AggregateGPA(studentID string, attempts []models.GradedAttempt) models.AcademicSummary {
	type termKey struct {
		year     int
		semester models.Semester
	}
	type termTotals struct {
		points  float64
		credits float64
		courses int
	}

	terms := map[termKey]*termTotals{}
	var totalPoints, totalCredits, earned float64
	for _, a := range attempts {
		if !a.Status.Graded() || a.GradePoint == nil {
			continue
		}
		key := termKey{year: a.Year, semester: a.Semester}
		tt, ok := terms[key]
		if !ok {
			tt = &termTotals{}
			terms[key] = tt
		}
		weighted := *a.GradePoint * a.Credits
		tt.points += weighted
		tt.credits += a.Credits
		tt.courses++
		totalPoints += weighted
		totalCredits += a.Credits
		if a.Status == models.EnrollmentStatusCompleted {
			earned += a.Credits
		}
	}

	keys := make([]termKey, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].semester.Order() < keys[j].semester.Order()
	})

	summary := models.AcademicSummary{
		StudentID:     studentID,
		TotalCredits:  totalCredits,
		EarnedCredits: earned,
		Semesters:     make([]models.SemesterGPA, 0, len(keys)),
	}
	for _, k := range keys {
		tt := terms[k]
		var gpa float64
		if tt.credits > 0 {
			gpa = round2(tt.points / tt.credits)
		}
		summary.Semesters = append(summary.Semesters, models.SemesterGPA{
			Semester: k.semester,
			Year:     k.year,
			GPA:      gpa,
			Credits:  tt.credits,
			Courses:  tt.courses,
		})
	}
	if totalCredits > 0 {
		summary.CGPA = round2(totalPoints / totalCredits)
	}
	if n := len(summary.Semesters); n > 0 {
		summary.GPA = summary.Semesters[n-1].GPA
	}
	return summary
}

type enrollmentGradeStore interface {
	UpdateGradesLocked(ctx context.Context, id string, apply func(*models.EnrollmentDetail) error) (*models.EnrollmentDetail, error)
	ListGradedAttempts(ctx context.Context, studentID string) ([]models.GradedAttempt, error)
}

type studentSummaryStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	SaveAcademicSummary(ctx context.Context, summary models.AcademicSummary) error
}

type eventNotifier interface {
	Notify(ctx context.Context, event models.DomainEvent)
}

// UpdateGradesRequest carries the components to store. Omitted components keep
// their stored value.
type UpdateGradesRequest struct {
	models.GradeComponents
	Weights *models.GradeWeights `json:"weights,omitempty"`
}

// GradeService converts grade components into letters and points and keeps the
// student's academic aggregates in step with enrollment history.
type GradeService struct {
	enrollments enrollmentGradeStore
	students    studentSummaryStore
	cache       *CacheService
	metrics     *MetricsService
	notifier    eventNotifier
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs GradeService. cache, metrics and notifier may be nil.
func NewGradeService(enrollments enrollmentGradeStore, students studentSummaryStore, cache *CacheService, metrics *MetricsService, notifier eventNotifier, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		enrollments: enrollments,
		students:    students,
		cache:       cache,
		metrics:     metrics,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
	}
}

// UpdateGrades stores components and, once midterm and final are both known,
// finalises letter, point and status. The merge runs under the enrollment row
// lock. A finalised update triggers a full recompute of the student's aggregates.
func (s *GradeService) UpdateGrades(ctx context.Context, enrollmentID string, req UpdateGradesRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req.GradeComponents); err != nil {
		return nil, gradeRangeError(err)
	}

	var finalised bool
	detail, err := s.enrollments.UpdateGradesLocked(ctx, enrollmentID, func(d *models.EnrollmentDetail) error {
		var err error
		finalised, err = applyGrades(&d.Enrollment, req)
		return err
	})
	if err != nil {
		if appErrors.Code(err) != "" {
			return nil, err
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grades")
	}
	enrollment := detail.Enrollment
	s.metrics.RecordGradeUpdate(string(enrollment.Status))

	if finalised {
		if _, err := s.Recompute(ctx, enrollment.StudentID); err != nil {
			s.cache.InvalidateStudent(ctx, enrollment.StudentID)
			s.logger.Error("recompute after grade update failed",
				zap.String("student_id", enrollment.StudentID),
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err))
		}
	}

	payload := map[string]interface{}{"status": enrollment.Status, "course_code": detail.CourseCode}
	if enrollment.LetterGrade != nil {
		payload["letter_grade"] = *enrollment.LetterGrade
		payload["grade_point"] = *enrollment.GradePoint
	}
	s.notify(ctx, models.EventGradesUpdated, enrollment, payload)
	return &enrollment, nil
}

// applyGrades merges req into the locked enrollment and derives the final
// grade once midterm and final are present. The letter is taken from the
// unrounded average so band floors stay exact; the stored average is rounded.
func applyGrades(enrollment *models.Enrollment, req UpdateGradesRequest) (bool, error) {
	switch enrollment.Status {
	case models.EnrollmentStatusEnrolled, models.EnrollmentStatusCompleted, models.EnrollmentStatusFailed:
	default:
		return false, appErrors.WithDetails(appErrors.ErrInvalidState, "grades can only be entered for enrolled or graded enrollments",
			map[string]interface{}{"status": enrollment.Status})
	}

	if req.Midterm != nil {
		enrollment.Midterm = req.Midterm
	}
	if req.Final != nil {
		enrollment.Final = req.Final
	}
	if req.Homework != nil {
		enrollment.Homework = req.Homework
	}
	if enrollment.Midterm == nil || enrollment.Final == nil {
		return false, nil
	}

	raw, err := weightedAverage(enrollment.Components(), req.Weights)
	if err != nil {
		return false, err
	}
	average := round2(raw)
	letter := LetterGrade(raw)
	point := GradePoint(letter)
	enrollment.Average = &average
	enrollment.LetterGrade = &letter
	enrollment.GradePoint = &point
	if point >= passingGradePoint {
		enrollment.Status = models.EnrollmentStatusCompleted
	} else {
		enrollment.Status = models.EnrollmentStatusFailed
	}
	return true, nil
}

// ComputeCGPA recomputes the academic summary from enrollment history without persisting it.
func (s *GradeService) ComputeCGPA(ctx context.Context, studentID string) (*models.AcademicSummary, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	attempts, err := s.enrollments.ListGradedAttempts(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load graded attempts")
	}
	summary := AggregateGPA(studentID, attempts)
	return &summary, nil
}

// GetCGPA returns the academic summary, served from cache when available.
func (s *GradeService) GetCGPA(ctx context.Context, studentID string) (*models.AcademicSummary, error) {
	key := CGPACacheKey(studentID)
	var cached models.AcademicSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	summary, err := s.ComputeCGPA(ctx, studentID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, summary, 0)
	return summary, nil
}

// Recompute rebuilds gpa, cgpa and total_credits from enrollment history and
// overwrites the stored values. Repeated calls converge on the same result.
func (s *GradeService) Recompute(ctx context.Context, studentID string) (*models.AcademicSummary, error) {
	summary, err := s.ComputeCGPA(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.students.SaveAcademicSummary(ctx, *summary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save academic summary")
	}
	s.cache.InvalidateStudent(ctx, studentID)
	s.logger.Info("academic summary recomputed",
		zap.String("student_id", studentID),
		zap.Float64("cgpa", summary.CGPA),
		zap.Float64("total_credits", summary.TotalCredits))

	s.notify(ctx, models.EventGPARecomputed, models.Enrollment{StudentID: studentID},
		map[string]interface{}{"gpa": summary.GPA, "cgpa": summary.CGPA, "total_credits": summary.TotalCredits})
	return summary, nil
}

func (s *GradeService) notify(ctx context.Context, eventType models.EventType, enrollment models.Enrollment, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, newDomainEvent(ctx, eventType, enrollment, payload))
}

func gradeRangeError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return appErrors.WithDetails(appErrors.ErrInvalidGradeRange, "", map[string]interface{}{"fields": fields})
}
