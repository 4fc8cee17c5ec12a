package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-core/internal/models"
)

type prerequisiteGraph interface {
	ListPrerequisites(ctx context.Context, courseID string) ([]models.CoursePrerequisite, error)
}

type completedCourseReader interface {
	ListCompletedCourses(ctx context.Context, studentID string) ([]models.CompletedCourse, error)
}

// PrerequisiteService resolves prerequisite closures and checks them against a
// student's completed courses. It only reads.
type PrerequisiteService struct {
	graph     prerequisiteGraph
	completed completedCourseReader
	logger    *zap.Logger
}

// NewPrerequisiteService constructs the resolver.
func NewPrerequisiteService(graph prerequisiteGraph, completed completedCourseReader, logger *zap.Logger) *PrerequisiteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrerequisiteService{graph: graph, completed: completed, logger: logger}
}

type walkFrame struct {
	courseID string
	expanded bool
}

// Resolve returns the transitive prerequisite closure of courseID, sorted by
// course code. Each requirement carries the floor of its own edge; when several
// edges reach the same course the strictest floor wins. Cyclic edges are logged
// and skipped. An unknown course has an empty closure.
func (s *PrerequisiteService) Resolve(ctx context.Context, courseID string) ([]models.PrerequisiteRequirement, error) {
	var (
		requirements []models.PrerequisiteRequirement
		index        = map[string]int{}
		onPath       = map[string]bool{}
		expanded     = map[string]bool{}
		stack        = []walkFrame{{courseID: courseID}}
	)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		top := len(stack) - 1
		frame := stack[top]
		if frame.expanded {
			onPath[frame.courseID] = false
			stack = stack[:top]
			continue
		}
		if expanded[frame.courseID] {
			stack = stack[:top]
			continue
		}
		stack[top].expanded = true
		expanded[frame.courseID] = true
		onPath[frame.courseID] = true

		edges, err := s.graph.ListPrerequisites(ctx, frame.courseID)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			floor := edge.MinGrade
			if !floor.Valid() {
				floor = models.DefaultMinimumGrade
			}
			if onPath[edge.PrerequisiteID] {
				s.logger.Warn("prerequisite cycle skipped",
					zap.String("course_id", frame.courseID),
					zap.String("prerequisite_id", edge.PrerequisiteID))
				continue
			}
			if i, seen := index[edge.PrerequisiteID]; seen {
				if floor.Rank() > requirements[i].MinGrade.Rank() {
					requirements[i].MinGrade = floor
					requirements[i].RequiredBy = frame.courseID
				}
				continue
			}
			index[edge.PrerequisiteID] = len(requirements)
			requirements = append(requirements, models.PrerequisiteRequirement{
				CourseID:   edge.PrerequisiteID,
				CourseCode: edge.PrerequisiteCode,
				CourseName: edge.PrerequisiteName,
				MinGrade:   floor,
				RequiredBy: frame.courseID,
			})
			stack = append(stack, walkFrame{courseID: edge.PrerequisiteID})
		}
	}

	sort.SliceStable(requirements, func(i, j int) bool {
		return requirements[i].CourseCode < requirements[j].CourseCode
	})
	return requirements, nil
}

// CheckSatisfied reports whether the student has completed every course in the
// closure of courseID at or above its floor.
func (s *PrerequisiteService) CheckSatisfied(ctx context.Context, studentID, courseID string) (*models.PrerequisiteCheck, error) {
	requirements, err := s.Resolve(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(requirements) == 0 {
		return &models.PrerequisiteCheck{CourseID: courseID, Satisfied: true}, nil
	}
	completed, err := s.completed.ListCompletedCourses(ctx, studentID)
	if err != nil {
		return nil, err
	}
	check := EvaluatePrerequisites(courseID, requirements, completed)
	return &check, nil
}

// EvaluatePrerequisites compares a closure with completed attempts using the
// best grade recorded per course.
func EvaluatePrerequisites(courseID string, requirements []models.PrerequisiteRequirement, completed []models.CompletedCourse) models.PrerequisiteCheck {
	best := make(map[string]models.LetterGrade, len(completed))
	for _, c := range completed {
		if current, ok := best[c.CourseID]; !ok || c.LetterGrade.Rank() > current.Rank() {
			best[c.CourseID] = c.LetterGrade
		}
	}

	check := models.PrerequisiteCheck{CourseID: courseID, Satisfied: true}
	for _, req := range requirements {
		grade, ok := best[req.CourseID]
		if ok && grade.AtLeast(req.MinGrade) {
			continue
		}
		missing := models.MissingPrerequisite{
			CourseID:      req.CourseID,
			CourseCode:    req.CourseCode,
			CourseName:    req.CourseName,
			RequiredGrade: req.MinGrade,
		}
		if ok {
			g := grade
			missing.BestGrade = &g
		}
		check.Missing = append(check.Missing, missing)
		check.Satisfied = false
	}
	return check
}
