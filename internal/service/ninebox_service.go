package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/perf-review-api/internal/dto"
	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
	"github.com/noah-isme/perf-review-api/pkg/export"
)

const (
	nineBoxScopeGlobal     = "global"
	nineBoxScopeDepartment = "department:"
)

type nineBoxEmployeeReader interface {
	GetActiveEmployees(ctx context.Context, asOf time.Time) ([]models.Employee, error)
}

type nineBoxSignalReader interface {
	FeedbackAverages(ctx context.Context, employeeIDs []string) (map[string]float64, error)
	SelfAssessmentAverages(ctx context.Context, employeeIDs []string) (map[string]float64, error)
	ManagerReviewAverages(ctx context.Context, employeeIDs []string) (map[string]float64, error)
	FinalReviewTotals(ctx context.Context, employeeIDs []string) (map[string]float64, error)
	LatestPotential(ctx context.Context, employeeIDs []string) (map[string]models.PotentialAssessment, error)
	GoalCompletion(ctx context.Context, employeeIDs []string) (map[string]models.Completion, error)
	TaskCompletion(ctx context.Context, employeeIDs []string) (map[string]models.Completion, error)
}

type nineBoxSnapshotStore interface {
	FindFreshSnapshot(ctx context.Context, scope string, now time.Time, freshness time.Duration) (*models.NineBoxSnapshot, error)
	InsertSnapshot(ctx context.Context, snapshot *models.NineBoxSnapshot) error
	PurgeSnapshots(ctx context.Context, before time.Time) (int64, error)
}

// datasetRenderer renders tabular exports.
type datasetRenderer interface {
	ContentType() string
	Extension() string
	Render(data export.Dataset) ([]byte, error)
}

// NineBoxServiceConfig tunes snapshot reuse and recommendation output.
type NineBoxServiceConfig struct {
	DefaultScope       string
	DefaultTTL         time.Duration
	MaxTTL             time.Duration
	MaxRecommendations int
	InferLegacyScales  bool
}

// NineBoxExport is a rendered matrix ready for download.
type NineBoxExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// NineBoxService places employees on the performance/potential grid and
// caches the result as persisted snapshots.
type NineBoxService struct {
	employees nineBoxEmployeeReader
	signals   nineBoxSignalReader
	snapshots nineBoxSnapshotStore
	renderers map[string]datasetRenderer
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       NineBoxServiceConfig
	group     singleflight.Group
}

// NewNineBoxService constructs the nine-box service.
func NewNineBoxService(
	employees nineBoxEmployeeReader,
	signals nineBoxSignalReader,
	snapshots nineBoxSnapshotStore,
	csvExporter *export.CSVExporter,
	pdfExporter *export.PDFExporter,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg NineBoxServiceConfig,
) *NineBoxService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultScope == "" {
		cfg.DefaultScope = nineBoxScopeGlobal
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 24 * time.Hour
	}
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = 25
	}
	renderers := make(map[string]datasetRenderer)
	if csvExporter != nil {
		renderers[csvExporter.Extension()] = csvExporter
	}
	if pdfExporter != nil {
		renderers[pdfExporter.Extension()] = pdfExporter
	}
	return &NineBoxService{
		employees: employees,
		signals:   signals,
		snapshots: snapshots,
		renderers: renderers,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// GetMatrix returns a fresh snapshot for the scope or computes a new one. The
// bool reports whether a stored snapshot was reused.
func (s *NineBoxService) GetMatrix(ctx context.Context, query dto.NineBoxQuery, now time.Time) (*models.NineBoxMatrix, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid nine-box query")
	}
	scope, departmentID, err := s.parseScope(query.Scope)
	if err != nil {
		return nil, false, err
	}
	ttl := s.ttl(query.TTLMinutes)

	if !query.Refresh {
		snapshot, err := s.snapshots.FindFreshSnapshot(ctx, scope, now, ttl)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load nine-box snapshot")
		}
		if snapshot != nil {
			matrix, err := matrixFromSnapshot(snapshot)
			if err == nil {
				s.metrics.RecordNineBox("snapshot", 0)
				return matrix, true, nil
			}
			s.logger.Warn("discarding undecodable nine-box snapshot", zap.String("snapshot_id", snapshot.ID), zap.Error(err))
		}
	}

	key := scope + "|" + strconv.FormatInt(int64(ttl/time.Minute), 10)
	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.compute(ctx, scope, departmentID, ttl, now)
	})
	if err != nil {
		return nil, false, err
	}
	return value.(*models.NineBoxMatrix), false, nil
}

func (s *NineBoxService) parseScope(raw string) (string, *string, error) {
	scope := strings.TrimSpace(raw)
	if scope == "" {
		scope = s.cfg.DefaultScope
	}
	if scope == nineBoxScopeGlobal {
		return scope, nil, nil
	}
	if strings.HasPrefix(scope, nineBoxScopeDepartment) {
		id := strings.TrimPrefix(scope, nineBoxScopeDepartment)
		if _, err := uuid.Parse(id); err == nil {
			return scope, &id, nil
		}
	}
	return "", nil, appErrors.Clone(appErrors.ErrValidation, "scope must be global or department:<id>")
}

func (s *NineBoxService) ttl(minutes int) time.Duration {
	if minutes <= 0 {
		return s.cfg.DefaultTTL
	}
	ttl := time.Duration(minutes) * time.Minute
	if ttl > s.cfg.MaxTTL {
		return s.cfg.MaxTTL
	}
	return ttl
}

func (s *NineBoxService) compute(ctx context.Context, scope string, departmentID *string, ttl time.Duration, now time.Time) (*models.NineBoxMatrix, error) {
	start := time.Now()
	employees, err := s.employees.GetActiveEmployees(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employees")
	}
	if departmentID != nil {
		filtered := employees[:0:0]
		for _, e := range employees {
			if e.DepartmentID != nil && *e.DepartmentID == *departmentID {
				filtered = append(filtered, e)
			}
		}
		employees = filtered
	}

	signals, err := s.collectSignals(ctx, employees)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load nine-box signals")
	}

	entries, stats, recs := buildNineBox(employees, signals, s.cfg.MaxRecommendations)
	matrix := &models.NineBoxMatrix{
		Scope:           scope,
		Source:          models.SnapshotSourceOnDemand,
		GeneratedAt:     now.UTC(),
		ValidUntil:      now.UTC().Add(ttl),
		Matrix:          entries,
		Stats:           stats,
		Recommendations: recs,
	}

	if err := s.persist(ctx, matrix); err != nil {
		s.logger.Warn("failed to persist nine-box snapshot", zap.String("scope", scope), zap.Error(err))
	}
	s.metrics.RecordNineBox("computed", time.Since(start))
	s.logger.Info("nine-box matrix computed", zap.String("scope", scope), zap.Int("employees", len(entries)))
	return matrix, nil
}

// collectSignals loads every signal source concurrently.
func (s *NineBoxService) collectSignals(ctx context.Context, employees []models.Employee) (map[string]models.NineBoxSignals, error) {
	out := make(map[string]models.NineBoxSignals, len(employees))
	if len(employees) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
	}

	var (
		feedback, self, manager, final map[string]float64
		potential                      map[string]models.PotentialAssessment
		goals, tasks                   map[string]models.Completion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { feedback, err = s.signals.FeedbackAverages(gctx, ids); return })
	g.Go(func() (err error) { self, err = s.signals.SelfAssessmentAverages(gctx, ids); return })
	g.Go(func() (err error) { manager, err = s.signals.ManagerReviewAverages(gctx, ids); return })
	g.Go(func() (err error) { final, err = s.signals.FinalReviewTotals(gctx, ids); return })
	g.Go(func() (err error) { potential, err = s.signals.LatestPotential(gctx, ids); return })
	g.Go(func() (err error) { goals, err = s.signals.GoalCompletion(gctx, ids); return })
	g.Go(func() (err error) { tasks, err = s.signals.TaskCompletion(gctx, ids); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tenScale := models.ScaleTen
	if s.cfg.InferLegacyScales {
		tenScale = models.ScaleInferred
	}
	for _, id := range ids {
		sig := models.NineBoxSignals{
			Feedback:    signalFrom(feedback, id, tenScale),
			Self:        signalFrom(self, id, tenScale),
			Manager:     signalFrom(manager, id, tenScale),
			FinalReview: signalFrom(final, id, models.ScaleHundred),
			Goals:       goals[id],
			Tasks:       tasks[id],
		}
		if p, ok := potential[id]; ok {
			p := p
			sig.Potential = &p
		}
		out[id] = sig
	}
	return out, nil
}

func signalFrom(values map[string]float64, id string, scale models.SignalScale) models.Signal {
	v, ok := values[id]
	return models.Signal{Value: v, Scale: scale, Present: ok}
}

func (s *NineBoxService) persist(ctx context.Context, matrix *models.NineBoxMatrix) error {
	payload, err := json.Marshal(matrix.Matrix)
	if err != nil {
		return fmt.Errorf("marshal matrix: %w", err)
	}
	stats, err := json.Marshal(matrix.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	recs, err := json.Marshal(matrix.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}
	return s.snapshots.InsertSnapshot(ctx, &models.NineBoxSnapshot{
		Scope:           matrix.Scope,
		Source:          matrix.Source,
		GeneratedAt:     matrix.GeneratedAt,
		ValidUntil:      matrix.ValidUntil,
		Payload:         types.JSONText(payload),
		Stats:           types.JSONText(stats),
		Recommendations: types.JSONText(recs),
	})
}

func matrixFromSnapshot(snapshot *models.NineBoxSnapshot) (*models.NineBoxMatrix, error) {
	matrix := &models.NineBoxMatrix{
		Scope:       snapshot.Scope,
		Source:      snapshot.Source,
		GeneratedAt: snapshot.GeneratedAt,
		ValidUntil:  snapshot.ValidUntil,
	}
	if err := snapshot.Payload.Unmarshal(&matrix.Matrix); err != nil {
		return nil, fmt.Errorf("decode matrix: %w", err)
	}
	if err := snapshot.Stats.Unmarshal(&matrix.Stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	if err := snapshot.Recommendations.Unmarshal(&matrix.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return matrix, nil
}

// Export renders the matrix of a scope as CSV or PDF.
func (s *NineBoxService) Export(ctx context.Context, query dto.NineBoxExportQuery, now time.Time) (*NineBoxExport, error) {
	format := query.Format
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	matrix, _, err := s.GetMatrix(ctx, dto.NineBoxQuery{Scope: query.Scope}, now)
	if err != nil {
		return nil, err
	}
	body, err := renderer.Render(nineBoxDataset(matrix))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	name := strings.NewReplacer(":", "-", "/", "-").Replace(matrix.Scope)
	return &NineBoxExport{
		Filename:    fmt.Sprintf("nine-box-%s-%s.%s", name, now.UTC().Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

var nineBoxExportHeaders = []string{"Employee", "Department", "Position", "Performance", "Potential", "Box", "Top recommendation"}

func nineBoxDataset(matrix *models.NineBoxMatrix) export.Dataset {
	data := export.Dataset{
		Title: fmt.Sprintf("Nine-box matrix (%s)", matrix.Scope),
		Summary: []export.SummaryLine{
			{Label: "Generated at", Value: matrix.GeneratedAt.UTC().Format(time.RFC3339)},
			{Label: "Employees", Value: strconv.Itoa(matrix.Stats.TotalEmployees)},
			{Label: "Average performance", Value: strconv.FormatFloat(matrix.Stats.AveragePerformance, 'f', 2, 64)},
			{Label: "Average potential", Value: strconv.FormatFloat(matrix.Stats.AveragePotential, 'f', 2, 64)},
		},
		Headers: nineBoxExportHeaders,
		Rows:    make([]map[string]string, 0, len(matrix.Matrix)),
	}
	for _, e := range matrix.Matrix {
		top := ""
		if len(e.Recommendations) > 0 {
			top = e.Recommendations[0].Title
		}
		data.Rows = append(data.Rows, map[string]string{
			"Employee":           e.EmployeeName,
			"Department":         e.Department,
			"Position":           e.Position,
			"Performance":        strconv.FormatFloat(e.PerformanceScore, 'f', 2, 64),
			"Potential":          strconv.FormatFloat(e.PotentialScore, 'f', 2, 64),
			"Box":                distributionKey(e.X, e.Y),
			"Top recommendation": top,
		})
	}
	return data
}

// PurgeExpired deletes snapshots that stopped being valid before now.
func (s *NineBoxService) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	removed, err := s.snapshots.PurgeSnapshots(ctx, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge nine-box snapshots")
	}
	if removed > 0 {
		s.logger.Info("purged nine-box snapshots", zap.Int64("removed", removed))
	}
	return removed, nil
}
