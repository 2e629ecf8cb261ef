package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fightpulse/calibration/internal/config"
	"github.com/fightpulse/calibration/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func strPtr(s string) *string { return &s }

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testCalibrationConfig() *config.CalibrationConfig {
	return &config.CalibrationConfig{
		Streams:              []string{"ufc"},
		WindowMonths:         6,
		MinSamples:           50,
		ECEThreshold:         0.15,
		BrierThreshold:       0.25,
		MCEThreshold:         0.20,
		CoverageLevels:       []float64{0.9},
		CoverageGapLimit:     0.05,
		ValidityDays:         45,
		ParamCacheTTLSeconds: 300,
	}
}

func testLabelingConfig() *config.LabelingConfig {
	return &config.LabelingConfig{
		ConfidenceFloor: 0.3,
		BatchLimit:      0,
		Concurrency:     4,
	}
}

// fakeOutcomeRepo serves canned outcomes and fight stats and records how it
// was called.
type fakeOutcomeRepo struct {
	outcomes  []*models.PredictionOutcome
	unlabeled []*models.FightStats
	stats     map[string]*models.FightStats

	listErr          error
	listUnlabeledErr error

	lastLimit       int
	lastIncludeWeak bool
}

func (f *fakeOutcomeRepo) ListByWindow(_ context.Context, stream string, _, _ time.Time) ([]*models.PredictionOutcome, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.PredictionOutcome
	for _, o := range f.outcomes {
		if o.Stream == stream {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOutcomeRepo) ListUnlabeled(_ context.Context, limit int, includeWeak bool) ([]*models.FightStats, error) {
	f.lastLimit = limit
	f.lastIncludeWeak = includeWeak
	if f.listUnlabeledErr != nil {
		return nil, f.listUnlabeledErr
	}
	if limit > 0 && len(f.unlabeled) > limit {
		return f.unlabeled[:limit], nil
	}
	return f.unlabeled, nil
}

func (f *fakeOutcomeRepo) CountByStream(_ context.Context, stream string) (int, error) {
	count := 0
	for _, o := range f.outcomes {
		if o.Stream == stream {
			count++
		}
	}
	return count, nil
}

func (f *fakeOutcomeRepo) GetFightStats(_ context.Context, sourceID string) (*models.FightStats, error) {
	if s, ok := f.stats[sourceID]; ok {
		return s, nil
	}
	return nil, models.ErrNotFound
}

// fakeParamRepo is an in-memory parameter store with the same supersession
// behavior as the SQL implementation: saving deactivates the prior active
// row for the key before appending the new active one.
type fakeParamRepo struct {
	mu        sync.Mutex
	platt     []*models.PlattParameters
	conformal []*models.ConformalParameters

	getPlattCalls     int
	getConformalCalls int

	getPlattErr      error
	savePlattErr     error
	saveConformalErr error
}

func (f *fakeParamRepo) GetActivePlatt(_ context.Context, stream string) (*models.PlattParameters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getPlattCalls++
	if f.getPlattErr != nil {
		return nil, f.getPlattErr
	}
	for i := len(f.platt) - 1; i >= 0; i-- {
		if f.platt[i].Stream == stream && f.platt[i].Active {
			return f.platt[i], nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeParamRepo) GetLatestPlatt(_ context.Context, stream string) (*models.PlattParameters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.platt) - 1; i >= 0; i-- {
		if f.platt[i].Stream == stream {
			return f.platt[i], nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeParamRepo) SavePlatt(_ context.Context, params *models.PlattParameters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.savePlattErr != nil {
		return f.savePlattErr
	}
	for _, p := range f.platt {
		if p.Stream == params.Stream {
			p.Active = false
		}
	}
	saved := *params
	saved.Active = true
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}
	f.platt = append(f.platt, &saved)
	return nil
}

func (f *fakeParamRepo) GetActiveConformal(_ context.Context, stream string, coverageLevel float64) (*models.ConformalParameters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getConformalCalls++
	for i := len(f.conformal) - 1; i >= 0; i-- {
		c := f.conformal[i]
		if c.Stream == stream && c.CoverageLevel == coverageLevel && c.Active {
			return c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeParamRepo) SaveConformal(_ context.Context, params *models.ConformalParameters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveConformalErr != nil {
		return f.saveConformalErr
	}
	for _, c := range f.conformal {
		if c.Stream == params.Stream && c.CoverageLevel == params.CoverageLevel {
			c.Active = false
		}
	}
	saved := *params
	saved.Active = true
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}
	f.conformal = append(f.conformal, &saved)
	return nil
}

func (f *fakeParamRepo) activePlattCount(stream string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.platt {
		if p.Stream == stream && p.Active {
			count++
		}
	}
	return count
}

func (f *fakeParamRepo) activeConformalCount(stream string, level float64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.conformal {
		if c.Stream == stream && c.CoverageLevel == level && c.Active {
			count++
		}
	}
	return count
}

// fakeWeakRepo records upserts and can refuse configured source IDs.
type fakeWeakRepo struct {
	mu            sync.Mutex
	upserts       []*models.WeakLabel
	authoritative map[string]bool
	failOn        map[string]error
}

func (f *fakeWeakRepo) Upsert(_ context.Context, label *models.WeakLabel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.authoritative[label.SourceID] {
		return models.ErrAuthoritativeLabel
	}
	if err := f.failOn[label.SourceID]; err != nil {
		return err
	}
	f.upserts = append(f.upserts, label)
	return nil
}

func (f *fakeWeakRepo) GetBySourceID(_ context.Context, sourceID string) (*models.WeakLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.upserts) - 1; i >= 0; i-- {
		if f.upserts[i].SourceID == sourceID {
			return f.upserts[i], nil
		}
	}
	return nil, models.ErrNotFound
}

// driftedOutcomes returns sixty authoritative finish outcomes that are
// systematically overconfident: six raw probabilities, ten fights each, the
// observed finish rate 25 points under the prediction. Every outcome also
// carries a score pair with the actual a little under the prediction.
func driftedOutcomes(stream string) []*models.PredictionOutcome {
	raws := []float64{0.45, 0.55, 0.65, 0.75, 0.85, 0.95}
	observed := time.Now().UTC().AddDate(0, -1, 0)

	var outcomes []*models.PredictionOutcome
	for _, raw := range raws {
		finishes := int((raw - 0.2) * 10)
		for i := 0; i < 10; i++ {
			predScore := raw * 100
			outcomes = append(outcomes, &models.PredictionOutcome{
				ID:                   uuid.New(),
				SourceID:             uuid.NewString(),
				Stream:               stream,
				PredictedProbability: raw,
				PredictedScore:       predScore,
				ActualFinish:         boolPtr(i < finishes),
				ActualScore:          floatPtr(predScore - 10 + float64(i)),
				LabelSource:          models.LabelSourceAuthoritative,
				ObservedAt:           observed,
			})
		}
	}
	return outcomes
}

// healthyOutcomes returns sixty authoritative outcomes whose observed finish
// rate sits within five points of the prediction, under every drift
// threshold.
func healthyOutcomes(stream string) []*models.PredictionOutcome {
	raws := []float64{0.45, 0.55, 0.65, 0.75, 0.85, 0.95}
	observed := time.Now().UTC().AddDate(0, -1, 0)

	var outcomes []*models.PredictionOutcome
	for _, raw := range raws {
		finishes := int(raw * 10)
		for i := 0; i < 10; i++ {
			predScore := raw * 100
			outcomes = append(outcomes, &models.PredictionOutcome{
				ID:                   uuid.New(),
				SourceID:             uuid.NewString(),
				Stream:               stream,
				PredictedProbability: raw,
				PredictedScore:       predScore,
				ActualFinish:         boolPtr(i < finishes),
				ActualScore:          floatPtr(predScore - 10 + float64(i)),
				LabelSource:          models.LabelSourceAuthoritative,
				ObservedAt:           observed,
			})
		}
	}
	return outcomes
}

// weakScoreOutcomes returns outcomes whose only ground truth is a weak label
// score: no finish result, so they feed the conformal side but never the
// probability side.
func weakScoreOutcomes(stream string, n int) []*models.PredictionOutcome {
	observed := time.Now().UTC().AddDate(0, -2, 0)

	var outcomes []*models.PredictionOutcome
	for i := 0; i < n; i++ {
		outcomes = append(outcomes, &models.PredictionOutcome{
			ID:                   uuid.New(),
			SourceID:             uuid.NewString(),
			Stream:               stream,
			PredictedProbability: 0.5,
			PredictedScore:       50 + float64(i),
			ActualScore:          floatPtr(25),
			LabelSource:          models.LabelSourceWeak,
			ObservedAt:           observed,
		})
	}
	return outcomes
}
