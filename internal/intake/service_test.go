package intake

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/hydrate/internal/hydration"
	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/notify"
	"github.com/hitoshi/hydrate/internal/profile"
	"github.com/hitoshi/hydrate/internal/security"
)

// --- モック ---

type mockIntakeRepo struct {
	created       []*model.IntakeLog
	createErr     error
	deleteFn      func(ctx context.Context, userID, id string) (bool, error)
	listBetweenFn func(ctx context.Context, userID string, from, to time.Time) ([]model.IntakeLog, error)
}

func (m *mockIntakeRepo) Create(ctx context.Context, log *model.IntakeLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, log)
	return nil
}
func (m *mockIntakeRepo) FindByID(ctx context.Context, id string) (*model.IntakeLog, error) {
	return nil, nil
}
func (m *mockIntakeRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return false, nil
}
func (m *mockIntakeRepo) ListBetween(ctx context.Context, userID string, from, to time.Time) ([]model.IntakeLog, error) {
	if m.listBetweenFn != nil {
		return m.listBetweenFn(ctx, userID, from, to)
	}
	return nil, nil
}
func (m *mockIntakeRepo) SumBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	return 0, nil
}
func (m *mockIntakeRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type mockDays struct {
	day *profile.Day
	err error
}

func (m *mockDays) Today(ctx context.Context, userID string, now time.Time) (*profile.Day, error) {
	return m.day, m.err
}

type mockRescheduler struct{ calls int }

func (m *mockRescheduler) Refresh(ctx context.Context, userID string) { m.calls++ }

type mockPublisher struct{ events []notify.Event }

func (m *mockPublisher) Publish(userID string, ev notify.Event) int {
	m.events = append(m.events, ev)
	return 1
}

type mockMetrics struct{ logged []int }

func (m *mockMetrics) RecordIntakeLogged(amountMl int) { m.logged = append(m.logged, amountMl) }

// --- ヘルパー ---

var (
	jst     = time.FixedZone("JST", 9*60*60)
	testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, jst)
)

func testDay() *profile.Day {
	window := hydration.ResolveDayWindow(hydration.Clock{Hour: 7}, hydration.Clock{Hour: 23}, testNow, jst)
	return &profile.Day{
		Profile:  &model.UserProfile{UserID: "user-1", WeightKg: 70, ActivityLevel: model.ActivityMedium},
		Location: jst,
		Window:   window,
		Goal:     &model.DailyGoal{UserID: "user-1", Date: "2025-06-01", TargetMl: 2000},
	}
}

type fixture struct {
	svc         *Service
	repo        *mockIntakeRepo
	rescheduler *mockRescheduler
	publisher   *mockPublisher
	metrics     *mockMetrics
}

func newFixture(repo *mockIntakeRepo, days *mockDays) *fixture {
	f := &fixture{
		repo:        repo,
		rescheduler: &mockRescheduler{},
		publisher:   &mockPublisher{},
		metrics:     &mockMetrics{},
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	f.svc = NewService(repo, days, security.NewNoteSanitizer(), f.rescheduler, f.publisher, f.metrics, logger)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

// --- Log ---

func TestService_Log(t *testing.T) {
	f := newFixture(&mockIntakeRepo{}, &mockDays{day: testDay()})

	log, err := f.svc.Log(context.Background(), "user-1", LogInput{
		AmountMl: 250,
		Note:     "  <b>麦茶</b> ",
	})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if log.Source != model.IntakeSourceQuick {
		t.Errorf("Source = %q, want quick", log.Source)
	}
	if log.Note != "麦茶" {
		t.Errorf("Note = %q, want sanitized 麦茶", log.Note)
	}
	if !log.DateTime.Equal(testNow) {
		t.Errorf("DateTime = %v, want now", log.DateTime)
	}
	if len(f.repo.created) != 1 {
		t.Fatalf("created = %d, want 1", len(f.repo.created))
	}
	if f.rescheduler.calls != 1 {
		t.Errorf("Refresh calls = %d, want 1", f.rescheduler.calls)
	}
	if len(f.metrics.logged) != 1 || f.metrics.logged[0] != 250 {
		t.Errorf("metrics = %v", f.metrics.logged)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != notify.EventIntake {
		t.Errorf("events = %+v", f.publisher.events)
	}
}

func TestService_Log_PastDateTime(t *testing.T) {
	f := newFixture(&mockIntakeRepo{}, &mockDays{day: testDay()})
	past := testNow.Add(-2 * time.Hour)

	log, err := f.svc.Log(context.Background(), "user-1", LogInput{
		AmountMl: 300,
		Source:   model.IntakeSourceCustom,
		DateTime: &past,
	})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if !log.DateTime.Equal(past) {
		t.Errorf("DateTime = %v, want %v", log.DateTime, past)
	}
}

func TestService_Log_ValidationErrors(t *testing.T) {
	future := testNow.Add(time.Hour)
	tests := []struct {
		name  string
		input LogInput
	}{
		{"量が0", LogInput{AmountMl: 0}},
		{"量が負", LogInput{AmountMl: -100}},
		{"量が上限超過", LogInput{AmountMl: MaxAmountMl + 1}},
		{"不明なソース", LogInput{AmountMl: 200, Source: "bottle"}},
		{"未来の時刻", LogInput{AmountMl: 200, DateTime: &future}},
		{"メモが長すぎる", LogInput{AmountMl: 200, Note: strings.Repeat("水", MaxNoteLength+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(&mockIntakeRepo{}, &mockDays{day: testDay()})

			_, err := f.svc.Log(context.Background(), "user-1", tt.input)
			assertAPIError(t, err, model.ErrCodeValidation)
			if len(f.repo.created) != 0 || f.rescheduler.calls != 0 {
				t.Error("nothing should be saved or rescheduled")
			}
		})
	}
}

func TestService_Log_RepositoryError(t *testing.T) {
	dbErr := errors.New("db down")
	f := newFixture(&mockIntakeRepo{createErr: dbErr}, &mockDays{day: testDay()})

	_, err := f.svc.Log(context.Background(), "user-1", LogInput{AmountMl: 200})
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if f.rescheduler.calls != 0 {
		t.Error("Refresh should not be called on failure")
	}
}

// --- Delete ---

func TestService_Delete(t *testing.T) {
	id := "0b6a4f0e-3c1d-4a55-9f0e-2b8d6c1a7e11"
	repo := &mockIntakeRepo{
		deleteFn: func(ctx context.Context, userID, gotID string) (bool, error) {
			if userID != "user-1" || gotID != id {
				t.Errorf("Delete(%q, %q)", userID, gotID)
			}
			return true, nil
		},
	}
	f := newFixture(repo, &mockDays{day: testDay()})

	if err := f.svc.Delete(context.Background(), "user-1", id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if f.rescheduler.calls != 1 {
		t.Errorf("Refresh calls = %d, want 1", f.rescheduler.calls)
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	f := newFixture(&mockIntakeRepo{}, &mockDays{day: testDay()})

	err := f.svc.Delete(context.Background(), "user-1", "0b6a4f0e-3c1d-4a55-9f0e-2b8d6c1a7e11")
	assertAPIError(t, err, model.ErrCodeIntakeNotFound)
	if f.rescheduler.calls != 0 {
		t.Error("Refresh should not be called")
	}
}

func TestService_Delete_InvalidID(t *testing.T) {
	repo := &mockIntakeRepo{
		deleteFn: func(ctx context.Context, userID, id string) (bool, error) {
			t.Error("Delete should not be called for malformed id")
			return false, nil
		},
	}
	f := newFixture(repo, &mockDays{day: testDay()})

	err := f.svc.Delete(context.Background(), "user-1", "not-a-uuid")
	assertAPIError(t, err, model.ErrCodeIntakeNotFound)
}

// --- Today ---

func TestService_Today(t *testing.T) {
	var gotFrom, gotTo time.Time
	repo := &mockIntakeRepo{
		listBetweenFn: func(ctx context.Context, userID string, from, to time.Time) ([]model.IntakeLog, error) {
			gotFrom, gotTo = from, to
			return []model.IntakeLog{
				{AmountMl: 300},
				{AmountMl: 200},
			}, nil
		},
	}
	f := newFixture(repo, &mockDays{day: testDay()})

	sum, err := f.svc.Today(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if sum.TotalMl != 500 || sum.TargetMl != 2000 || sum.RemainMl != 1500 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Progress != 0.25 {
		t.Errorf("Progress = %v, want 0.25", sum.Progress)
	}
	if sum.Date != "2025-06-01" {
		t.Errorf("Date = %q", sum.Date)
	}
	wantFrom := time.Date(2025, 6, 1, 0, 0, 0, 0, jst)
	if !gotFrom.Equal(wantFrom) || !gotTo.Equal(wantFrom.AddDate(0, 0, 1)) {
		t.Errorf("range = [%v, %v)", gotFrom, gotTo)
	}
}

func TestService_Today_Overshoot(t *testing.T) {
	repo := &mockIntakeRepo{
		listBetweenFn: func(ctx context.Context, userID string, from, to time.Time) ([]model.IntakeLog, error) {
			return []model.IntakeLog{{AmountMl: 2500}}, nil
		},
	}
	f := newFixture(repo, &mockDays{day: testDay()})

	sum, err := f.svc.Today(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if sum.RemainMl != 0 {
		t.Errorf("RemainMl = %d, want 0", sum.RemainMl)
	}
	if sum.Progress != 1.25 {
		t.Errorf("Progress = %v, want 1.25", sum.Progress)
	}
}

func TestService_Today_ProfileNotFound(t *testing.T) {
	f := newFixture(&mockIntakeRepo{}, &mockDays{err: model.NewProfileNotFoundError()})

	_, err := f.svc.Today(context.Background(), "user-1")
	assertAPIError(t, err, model.ErrCodeProfileNotFound)
}

// --- Insights ---

func TestService_Insights(t *testing.T) {
	var gotFrom time.Time
	repo := &mockIntakeRepo{
		listBetweenFn: func(ctx context.Context, userID string, from, to time.Time) ([]model.IntakeLog, error) {
			gotFrom = from
			return []model.IntakeLog{
				{AmountMl: 200, DateTime: time.Date(2025, 5, 30, 8, 10, 0, 0, jst)},
				{AmountMl: 300, DateTime: time.Date(2025, 5, 31, 8, 40, 0, 0, jst)},
				{AmountMl: 250, DateTime: time.Date(2025, 6, 1, 11, 0, 0, 0, jst)},
			}, nil
		},
	}
	f := newFixture(repo, &mockDays{day: testDay()})

	ins, err := f.svc.Insights(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("Insights() error = %v", err)
	}
	if ins.Days != 7 {
		t.Errorf("Days = %d, want 7", ins.Days)
	}
	if want := time.Date(2025, 5, 26, 0, 0, 0, 0, jst); !gotFrom.Equal(want) {
		t.Errorf("from = %v, want %v", gotFrom, want)
	}
	if ins.HourlyMl[8] != 500 || ins.HourlyMl[11] != 250 {
		t.Errorf("HourlyMl = %v", ins.HourlyMl)
	}
	if len(ins.MostActiveHours) == 0 || ins.MostActiveHours[0] != "08:00" {
		t.Errorf("MostActiveHours = %v", ins.MostActiveHours)
	}
}

func TestService_Insights_InvalidDays(t *testing.T) {
	f := newFixture(&mockIntakeRepo{}, &mockDays{day: testDay()})

	for _, d := range []int{-1, 91} {
		_, err := f.svc.Insights(context.Background(), "user-1", d)
		assertAPIError(t, err, model.ErrCodeValidation)
	}
}
