package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/noah-isme/academic-core/internal/models"
	"github.com/noah-isme/academic-core/internal/repository"
)

// memEnrollmentStore is an in-memory stand-in for EnrollmentStore. Transactions
// are serialised the way the section row lock serialises them in PostgreSQL and
// writes are staged until commit, so rollback leaves no trace.
type memEnrollmentStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	sections    map[string]*models.CourseSection
	slots       map[string][]models.TimeSlot
	enrollments map[string]*models.Enrollment
	nextID      int
	// locks records row locks in the order transactions took them.
	locks []string

	// staleLock makes LockSection report an empty section so the conditional
	// increment is the only guard left.
	staleLock bool
	// beforeCommit runs after fn succeeded and before the commit check.
	beforeCommit func(ctx context.Context)
}

func newMemEnrollmentStore() *memEnrollmentStore {
	return &memEnrollmentStore{
		sections:    map[string]*models.CourseSection{},
		slots:       map[string][]models.TimeSlot{},
		enrollments: map[string]*models.Enrollment{},
	}
}

func (m *memEnrollmentStore) addSection(section models.CourseSection, slots ...models.TimeSlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := section
	m.sections[s.ID] = &s
	for i := range slots {
		slots[i].SectionID = s.ID
		slots[i].ID = fmt.Sprintf("%s-slot-%d", s.ID, i)
	}
	m.slots[s.ID] = slots
}

func (m *memEnrollmentStore) seed(e models.Enrollment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := e
	m.enrollments[cp.ID] = &cp
}

func (m *memEnrollmentStore) section(id string) models.CourseSection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.sections[id]
}

func (m *memEnrollmentStore) enrollment(id string) (models.Enrollment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enrollments[id]
	if !ok {
		return models.Enrollment{}, false
	}
	return *e, true
}

func (m *memEnrollmentStore) countStatus(sectionID string, status models.EnrollmentStatus) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.enrollments {
		if e.SectionID == sectionID && e.Status == status {
			n++
		}
	}
	return n
}

func (m *memEnrollmentStore) Reader() repository.EnrollmentReader {
	return &memTx{store: m, deltas: map[string]int{}, updates: map[string]models.Enrollment{}}
}

func (m *memEnrollmentStore) WithinTx(ctx context.Context, fn func(repository.EnrollmentTx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{store: m, deltas: map[string]int{}, updates: map[string]models.Enrollment{}}
	if err := fn(tx); err != nil {
		return err
	}
	if m.beforeCommit != nil {
		m.beforeCommit(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enrollment transaction aborted: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, delta := range tx.deltas {
		m.sections[id].EnrolledCount += delta
	}
	for _, e := range tx.creates {
		cp := e
		m.enrollments[cp.ID] = &cp
	}
	for id, e := range tx.updates {
		cp := e
		m.enrollments[id] = &cp
	}
	return nil
}

// ListHeldSections, ListSlots, ListCompletedCourses and FindByID let the
// store back the real detectors over committed state.
func (m *memEnrollmentStore) ListHeldSections(ctx context.Context, studentID string, semester models.Semester, year int) ([]models.StudentSection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.StudentSection
	for _, e := range m.enrollments {
		s := m.sections[e.SectionID]
		if e.StudentID == studentID && e.Status == models.EnrollmentStatusEnrolled && s.Semester == semester && s.Year == year {
			out = append(out, models.StudentSection{EnrollmentID: e.ID, SectionID: s.ID, CourseID: s.CourseID, CourseCode: s.CourseCode, Semester: s.Semester, Year: s.Year})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SectionID < out[j].SectionID })
	return out, nil
}

func (m *memEnrollmentStore) ListSlots(ctx context.Context, sectionIDs []string) (map[string][]models.TimeSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string][]models.TimeSlot{}
	for _, id := range sectionIDs {
		out[id] = append([]models.TimeSlot(nil), m.slots[id]...)
	}
	return out, nil
}

func (m *memEnrollmentStore) ListCompletedCourses(ctx context.Context, studentID string) ([]models.CompletedCourse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.CompletedCourse
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.Status == models.EnrollmentStatusCompleted && e.LetterGrade != nil {
			out = append(out, models.CompletedCourse{CourseID: m.sections[e.SectionID].CourseID, LetterGrade: *e.LetterGrade})
		}
	}
	return out, nil
}

func (m *memEnrollmentStore) FindByID(ctx context.Context, id string) (*models.CourseSection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

type memTx struct {
	store   *memEnrollmentStore
	deltas  map[string]int
	creates []models.Enrollment
	updates map[string]models.Enrollment
}

func (t *memTx) FindSection(ctx context.Context, sectionID string) (*models.CourseSection, error) {
	return t.store.FindByID(ctx, sectionID)
}

func (m *memEnrollmentStore) recordLock(row string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = append(m.locks, row)
}

func (m *memEnrollmentStore) lockLog() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.locks...)
}

func (t *memTx) LockStudent(ctx context.Context, studentID string) error {
	t.store.recordLock("student:" + studentID)
	return nil
}

func (t *memTx) LockSection(ctx context.Context, sectionID string) (*models.CourseSection, error) {
	t.store.recordLock("section:" + sectionID)
	section, err := t.store.FindByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	section.EnrolledCount += t.deltas[sectionID]
	if t.store.staleLock {
		section.EnrolledCount = 0
	}
	return section, nil
}

func (t *memTx) LockEnrollment(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	if e, ok := t.updates[enrollmentID]; ok {
		return &e, nil
	}
	e, ok := t.store.enrollment(enrollmentID)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (t *memTx) visible() []models.Enrollment {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	var out []models.Enrollment
	for id, e := range t.store.enrollments {
		if u, ok := t.updates[id]; ok {
			out = append(out, u)
			continue
		}
		out = append(out, *e)
	}
	return append(out, t.creates...)
}

func (t *memTx) FindStudentSection(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error) {
	for _, e := range t.visible() {
		if e.StudentID == studentID && e.SectionID == sectionID {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) FindEnrolledInCourseTerm(ctx context.Context, studentID, courseID string, semester models.Semester, year int, excludeSectionID string) (*models.Enrollment, error) {
	for _, e := range t.visible() {
		if e.StudentID != studentID || e.Status != models.EnrollmentStatusEnrolled || e.SectionID == excludeSectionID {
			continue
		}
		s := t.store.section(e.SectionID)
		if s.CourseID == courseID && s.Semester == semester && s.Year == year {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) HasPriorAttempt(ctx context.Context, studentID, courseID string) (bool, error) {
	for _, e := range t.visible() {
		if e.StudentID == studentID && e.Status.Graded() && t.store.section(e.SectionID).CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ConditionalIncrement(ctx context.Context, sectionID string, delta int) (int64, error) {
	s := t.store.section(sectionID)
	next := s.EnrolledCount + t.deltas[sectionID] + delta
	if next < 0 || next > s.Capacity {
		return 0, nil
	}
	t.deltas[sectionID] += delta
	return 1, nil
}

func (t *memTx) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if existing, _ := t.FindStudentSection(ctx, enrollment.StudentID, enrollment.SectionID); existing != nil {
		return fmt.Errorf("create enrollment: duplicate key")
	}
	t.store.mu.Lock()
	t.store.nextID++
	enrollment.ID = fmt.Sprintf("enr-%d", t.store.nextID)
	t.store.mu.Unlock()
	t.creates = append(t.creates, *enrollment)
	return nil
}

func (t *memTx) UpdateEnrollmentState(ctx context.Context, enrollment *models.Enrollment) error {
	if _, err := t.LockEnrollment(ctx, enrollment.ID); err != nil {
		return err
	}
	t.updates[enrollment.ID] = *enrollment
	return nil
}
