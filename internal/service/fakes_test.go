package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

// memStore is an in-memory stand-in for the review tables.
type memStore struct {
	mu            sync.Mutex
	seq           int
	employees     []models.Employee
	periods       []models.ReviewPeriod
	questions     []models.Question
	answers       []*models.Answer
	logs          []*models.ReviewLog
	notifications []*models.Notification
	tasks         []*models.ReviewTask
	taskAnswers   []*models.TaskAnswer
	teams         map[string][]string
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) nextID() string {
	m.seq++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", m.seq)
}

type (
	memEmployees     struct{ *memStore }
	memPeriods       struct{ *memStore }
	memQuestions     struct{ *memStore }
	memAnswers       struct{ *memStore }
	memLogs          struct{ *memStore }
	memNotifications struct{ *memStore }
	memTasks         struct{ *memStore }
)

type fakeTx struct {
	calls int
}

func (f *fakeTx) WithinTx(_ context.Context, fn func(exec sqlx.ExtContext) error) error {
	f.calls++
	return fn(nil)
}

func (m memEmployees) GetActiveEmployees(_ context.Context, asOf time.Time) ([]models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Employee
	for _, e := range m.employees {
		if e.IsActive(asOf) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m memEmployees) FindByID(_ context.Context, id string) (*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.employees {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (m memEmployees) ListTeamPeers(_ context.Context, employeeID string) ([]models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Employee
	for _, peerID := range m.teams[employeeID] {
		for _, e := range m.employees {
			if e.ID == peerID {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (m memEmployees) GetEmployeeDepartment(ctx context.Context, id string) (*string, error) {
	e, _ := m.FindByID(ctx, id)
	if e == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
	}
	return e.DepartmentID, nil
}

func (m memPeriods) ListActive(context.Context) ([]models.ReviewPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReviewPeriod
	for _, p := range m.periods {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthOffset < out[j].MonthOffset })
	return out, nil
}

func (m memPeriods) FindByID(_ context.Context, id string) (*models.ReviewPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.periods {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m memPeriods) EnsureZero(_ context.Context, name string) (*models.ReviewPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.periods {
		if p.MonthOffset == 0 {
			p := p
			return &p, nil
		}
	}
	p := models.ReviewPeriod{ID: m.nextID(), Name: name, IsActive: true}
	m.periods = append(m.periods, p)
	return &p, nil
}

func (m memPeriods) EnsureDefaults(_ context.Context, periods []models.ReviewPeriod) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := 0
	for _, want := range periods {
		exists := false
		for _, p := range m.periods {
			if p.MonthOffset == want.MonthOffset && p.Name == want.Name {
				exists = true
				break
			}
		}
		if !exists {
			m.periods = append(m.periods, models.ReviewPeriod{ID: m.nextID(), MonthOffset: want.MonthOffset, Name: want.Name, IsActive: true})
			created++
		}
	}
	return created, nil
}

func (m memQuestions) ListActive(context.Context) ([]models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Question
	for _, q := range m.questions {
		if q.IsActive {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m memQuestions) ListByContexts(_ context.Context, contexts []string, departmentID *string) ([]models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Question
	for _, q := range m.questions {
		if !q.IsActive || !containsString(contexts, q.Context) {
			continue
		}
		if q.DepartmentID != nil && (departmentID == nil || *q.DepartmentID != *departmentID) {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func containsString(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}

func (m memAnswers) find(subject, respondent, period, question string) *models.Answer {
	for _, a := range m.answers {
		if a.SubjectID == subject && a.RespondentID == respondent && a.PeriodID == period && a.QuestionID == question {
			return a
		}
	}
	return nil
}

func (m memAnswers) EnsurePlaceholders(_ context.Context, _ sqlx.ExtContext, placeholders []models.PlaceholderAnswer, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := 0
	for _, p := range placeholders {
		if m.find(p.SubjectID, p.RespondentID, p.PeriodID, p.QuestionID) != nil {
			continue
		}
		m.answers = append(m.answers, &models.Answer{
			ID: m.nextID(), SubjectID: p.SubjectID, RespondentID: p.RespondentID, PeriodID: p.PeriodID,
			QuestionID: p.QuestionID, QuestionType: p.QuestionType, Weight: p.Weight, CreatedAt: now, UpdatedAt: now,
		})
		created++
	}
	return created, nil
}

func (m memAnswers) Upsert(_ context.Context, _ sqlx.ExtContext, w models.AnswerWrite, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.find(w.SubjectID, w.RespondentID, w.PeriodID, w.QuestionID)
	if a == nil {
		a = &models.Answer{ID: m.nextID(), SubjectID: w.SubjectID, RespondentID: w.RespondentID, PeriodID: w.PeriodID, QuestionID: w.QuestionID, CreatedAt: now}
		m.answers = append(m.answers, a)
	}
	a.Grade = w.Grade
	a.AnswerValue = w.AnswerValue
	a.IsCorrect = w.IsCorrect
	a.QuestionType = w.QuestionType
	a.Weight = w.Weight
	a.Answered = true
	a.UpdatedAt = now
	return nil
}

func (m memAnswers) ListForForm(_ context.Context, subject, respondent, period string) ([]models.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Answer
	for _, a := range m.answers {
		if a.SubjectID == subject && a.RespondentID == respondent && a.PeriodID == period {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m memAnswers) ListScored(_ context.Context, filter models.AnalyticsFilter) ([]models.ScoredAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScoredAnswer
	for _, a := range m.answers {
		if a.SubjectID != filter.SubjectID || !a.Answered {
			continue
		}
		if filter.PeriodID != nil && a.PeriodID != *filter.PeriodID {
			continue
		}
		if (filter.Type == models.AnalyticsTypeHard || filter.Type == models.AnalyticsTypeSoft) && string(a.QuestionType) != filter.Type {
			continue
		}
		row := models.ScoredAnswer{
			RespondentID: a.RespondentID, PeriodID: a.PeriodID, SkillType: a.QuestionType,
			Grade: a.Grade, Weight: a.Weight, Answered: a.Answered,
		}
		for _, q := range m.questions {
			if q.ID == a.QuestionID {
				row.Category = q.Category
			}
		}
		for _, p := range m.periods {
			if p.ID == a.PeriodID {
				row.PeriodName, row.MonthOffset = p.Name, p.MonthOffset
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (m memAnswers) Stats(_ context.Context, subjectID string) (models.AnswerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats models.AnswerStats
	for _, a := range m.answers {
		if a.SubjectID != subjectID {
			continue
		}
		stats.Total++
		if a.Answered {
			stats.Answered++
		}
	}
	return stats, nil
}

func (m memLogs) UpsertOpen(_ context.Context, _ sqlx.ExtContext, in models.ReviewLogUpsert, now time.Time) (*models.ReviewLog, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.SubjectID == in.SubjectID && l.RespondentID == in.RespondentID && l.PeriodID == in.PeriodID &&
			sameTask(l.TaskID, in.TaskID) && l.Context == in.Context && !l.Status.IsTerminal() {
			l.ExpiresAt = in.ExpiresAt
			l.Metadata = l.Metadata.Merge(in.Metadata)
			l.UpdatedAt = now
			out := *l
			return &out, false, nil
		}
	}
	l := &models.ReviewLog{
		ID: m.nextID(), SubjectID: in.SubjectID, RespondentID: in.RespondentID, PeriodID: in.PeriodID, TaskID: in.TaskID,
		Context: in.Context, Token: in.Token, ExpiresAt: in.ExpiresAt, Status: models.ReviewStatusPendingNotification,
		Metadata: models.Metadata{}.Merge(in.Metadata), CreatedAt: now, UpdatedAt: now,
	}
	m.logs = append(m.logs, l)
	out := *l
	return &out, true, nil
}

func sameTask(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m memLogs) byToken(token string) *models.ReviewLog {
	for _, l := range m.logs {
		if l.Token == token {
			return l
		}
	}
	return nil
}

func (m memLogs) byID(id string) *models.ReviewLog {
	for _, l := range m.logs {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (m memLogs) FindByToken(_ context.Context, token string) (*models.ReviewLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.byToken(token); l != nil {
		out := *l
		return &out, nil
	}
	return nil, nil
}

func (m memLogs) LockByToken(ctx context.Context, _ sqlx.ExtContext, token string) (*models.ReviewLog, error) {
	return m.FindByToken(ctx, token)
}

func (m memLogs) ExpireIfOpen(_ context.Context, _ sqlx.ExtContext, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.byID(id)
	if l == nil || l.Status.IsTerminal() {
		return false, nil
	}
	l.Status = models.ReviewStatusExpired
	l.Metadata = l.Metadata.Merge(models.Metadata{models.MetaExpiredAt: now.UTC().Format(time.RFC3339)})
	l.UpdatedAt = now
	return true, nil
}

func (m memLogs) UpdateStatus(_ context.Context, _ sqlx.ExtContext, id string, status models.ReviewStatus, meta models.Metadata, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.byID(id)
	if l == nil {
		return fmt.Errorf("log %s not found", id)
	}
	l.Status = status
	l.Metadata = l.Metadata.Merge(meta)
	l.UpdatedAt = now
	return nil
}

func (m memLogs) ListBySubject(_ context.Context, subjectID string) ([]models.ReviewLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReviewLog
	for _, l := range m.logs {
		if l.SubjectID == subjectID && l.Context == models.ReviewContextSkill {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m memNotifications) UpsertForLog(_ context.Context, _ sqlx.ExtContext, n *models.Notification, now time.Time) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.notifications {
		if existing.ReviewLogID == n.ReviewLogID {
			existing.Title, existing.Message = n.Title, n.Message
			existing.Metadata = existing.Metadata.Merge(n.Metadata)
			existing.IsRead, existing.ReadAt = false, nil
			existing.UpdatedAt = now
			return existing.ID, false, nil
		}
	}
	stored := *n
	stored.ID = m.nextID()
	stored.CreatedAt, stored.UpdatedAt = now, now
	m.notifications = append(m.notifications, &stored)
	return stored.ID, true, nil
}

func (m memNotifications) SetLink(_ context.Context, _ sqlx.ExtContext, id, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id {
			n.Link = link
			return nil
		}
	}
	return fmt.Errorf("notification %s not found", id)
}

func (m memNotifications) MarkReadByLog(_ context.Context, _ sqlx.ExtContext, logID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ReviewLogID == logID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
		}
	}
	return nil
}

func (m memNotifications) MarkRead(_ context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id {
			n.IsRead = true
			if n.ReadAt == nil {
				n.ReadAt = &now
			}
			return true, nil
		}
	}
	return false, nil
}

func (m memNotifications) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.Notification
	for _, n := range m.notifications {
		if n.RecipientID == filter.RecipientID && (!filter.UnreadOnly || !n.IsRead) {
			matched = append(matched, *n)
		}
	}
	start := (filter.Page - 1) * filter.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (m memTasks) CreateGoal(_ context.Context, _ sqlx.ExtContext, goal *models.ReviewGoal, tasks []models.ReviewTask, now time.Time) ([]models.ReviewTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	goal.ID = m.nextID()
	goal.Status = models.GoalStatusActive
	goal.CreatedAt, goal.UpdatedAt = now, now
	out := make([]models.ReviewTask, 0, len(tasks))
	for _, t := range tasks {
		t.ID = m.nextID()
		t.GoalID, t.GoalTitle, t.OwnerID = goal.ID, goal.Title, goal.OwnerID
		t.Status = models.TaskStatusActive
		t.CreatedAt, t.UpdatedAt = now, now
		stored := t
		m.tasks = append(m.tasks, &stored)
		out = append(out, t)
	}
	return out, nil
}

func (m memTasks) ListDue(_ context.Context, asOf time.Time) ([]models.ReviewTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReviewTask
	for _, t := range m.tasks {
		if t.Status == models.TaskStatusActive && !t.EndDate.After(asOf) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m memTasks) FindByID(_ context.Context, id string) (*models.ReviewTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			out := *t
			return &out, nil
		}
	}
	return nil, nil
}

func (m memTasks) UpdateStatus(_ context.Context, _ sqlx.ExtContext, id string, status models.TaskStatus, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			t.Status = status
			t.UpdatedAt = now
		}
	}
	return nil
}

func (m memTasks) find(slot models.TaskAnswerSlot) *models.TaskAnswer {
	for _, a := range m.taskAnswers {
		if a.TaskID == slot.TaskID && a.SubjectID == slot.SubjectID && a.RespondentID == slot.RespondentID && a.QuestionID == slot.QuestionID {
			return a
		}
	}
	return nil
}

func (m memTasks) EnsureAnswerPlaceholders(_ context.Context, _ sqlx.ExtContext, slots []models.TaskAnswerSlot, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := 0
	for _, slot := range slots {
		if m.find(slot) != nil {
			continue
		}
		m.taskAnswers = append(m.taskAnswers, &models.TaskAnswer{
			ID: m.nextID(), TaskID: slot.TaskID, SubjectID: slot.SubjectID, RespondentID: slot.RespondentID,
			QuestionID: slot.QuestionID, CreatedAt: now, UpdatedAt: now,
		})
		created++
	}
	return created, nil
}

func (m memTasks) ListAnswers(_ context.Context, taskID, subjectID, respondentID string) ([]models.TaskAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TaskAnswer
	for _, a := range m.taskAnswers {
		if a.TaskID == taskID && a.SubjectID == subjectID && a.RespondentID == respondentID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m memTasks) UpsertAnswer(_ context.Context, _ sqlx.ExtContext, slot models.TaskAnswerSlot, grade int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.find(slot)
	if a == nil {
		a = &models.TaskAnswer{ID: m.nextID(), TaskID: slot.TaskID, SubjectID: slot.SubjectID,
			RespondentID: slot.RespondentID, QuestionID: slot.QuestionID, CreatedAt: now}
		m.taskAnswers = append(m.taskAnswers, a)
	}
	a.Grade = grade
	a.Answered = true
	a.UpdatedAt = now
	return nil
}

func (m memTasks) CountUnanswered(_ context.Context, _ sqlx.ExtContext, taskID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.taskAnswers {
		if a.TaskID == taskID && !a.Answered {
			n++
		}
	}
	return n, nil
}

// reviewFixture wires the cycle and review services over one memStore.
type reviewFixture struct {
	store       *memStore
	tx          *fakeTx
	cycle       *CycleService
	reviews     *ReviewService
	tasks       *TaskReviewService
	invalidated []string
}

func (f *reviewFixture) InvalidateSubject(_ context.Context, subjectID string) {
	f.invalidated = append(f.invalidated, subjectID)
}

func newReviewFixture() *reviewFixture {
	store := newMemStore()
	f := &reviewFixture{store: store, tx: &fakeTx{}}
	f.cycle = NewCycleService(f.tx, memEmployees{store}, memPeriods{store}, memQuestions{store}, memAnswers{store},
		memLogs{store}, memNotifications{store}, f, nil, nil, CycleServiceConfig{TokenTTL: 24 * time.Hour})
	f.reviews = NewReviewService(f.tx, memLogs{store}, memAnswers{store}, memQuestions{store}, memPeriods{store},
		memEmployees{store}, memNotifications{store}, f, nil, nil, nil)
	f.tasks = NewTaskReviewService(f.tx, memTasks{store}, memEmployees{store}, memQuestions{store}, memLogs{store},
		memNotifications{store}, nil, nil, nil, TaskReviewServiceConfig{TokenTTL: 24 * time.Hour})
	return f
}

func (f *reviewFixture) addEmployee(name, activation string) models.Employee {
	e := models.Employee{ID: f.store.nextID(), FullName: name, HireDate: mustDay(activation), ActivationDate: mustDay(activation)}
	f.store.employees = append(f.store.employees, e)
	return e
}

func (f *reviewFixture) addPeriod(offset int, name string) models.ReviewPeriod {
	p := models.ReviewPeriod{ID: f.store.nextID(), MonthOffset: offset, Name: name, IsActive: true}
	f.store.periods = append(f.store.periods, p)
	return p
}

func (f *reviewFixture) addQuestion(q models.Question) models.Question {
	q.ID = f.store.nextID()
	q.IsActive = true
	if q.Context == "" {
		q.Context = models.QuestionContextBoth
	}
	if q.AnswerType == "" {
		q.AnswerType = models.AnswerTypeScale
	}
	if q.ScaleMax == 0 {
		q.ScaleMax = 10
	}
	if q.Weight == 0 {
		q.Weight = 1
	}
	if q.MaxScore == 0 {
		q.MaxScore = 10
	}
	f.store.questions = append(f.store.questions, q)
	return q
}

func (f *reviewFixture) logsFor(subjectID, respondentID string) []models.ReviewLog {
	var out []models.ReviewLog
	for _, l := range f.store.logs {
		if l.SubjectID == subjectID && l.RespondentID == respondentID {
			out = append(out, *l)
		}
	}
	return out
}

func (f *reviewFixture) placeholderCount(subjectID string) int {
	n := 0
	for _, a := range f.store.answers {
		if a.SubjectID == subjectID {
			n++
		}
	}
	return n
}
