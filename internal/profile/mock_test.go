package profile

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/hydrate/internal/model"
)

type mockProfileRepo struct {
	profile  *model.UserProfile
	findErr  error
	upsertFn func(ctx context.Context, p *model.UserProfile) error
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	return m.profile, m.findErr
}

func (m *mockProfileRepo) Upsert(ctx context.Context, p *model.UserProfile) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, p)
	}
	m.profile = p
	return nil
}

// mockGoalRepo は日付をキーに目標を保持するインメモリ実装。
type mockGoalRepo struct {
	goals   map[string]*model.DailyGoal
	upserts int
}

func newMockGoalRepo(goals ...*model.DailyGoal) *mockGoalRepo {
	m := &mockGoalRepo{goals: make(map[string]*model.DailyGoal)}
	for _, g := range goals {
		m.goals[g.Date] = g
	}
	return m
}

func (m *mockGoalRepo) FindByUserAndDate(ctx context.Context, userID, date string) (*model.DailyGoal, error) {
	return m.goals[date], nil
}

func (m *mockGoalRepo) Upsert(ctx context.Context, goal *model.DailyGoal) error {
	m.upserts++
	m.goals[goal.Date] = goal
	return nil
}

type mockRescheduler struct {
	refreshed []string
}

func (m *mockRescheduler) Refresh(ctx context.Context, userID string) {
	m.refreshed = append(m.refreshed, userID)
}

// testNow は日本時間 2025-06-01 12:00。
var testNow = time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

func testProfile() *model.UserProfile {
	return &model.UserProfile{
		UserID:        "user-1",
		WeightKg:      70,
		Sex:           model.SexFemale,
		ActivityLevel: model.ActivityMedium,
		WakeTime:      "07:00",
		SleepTime:     "23:00",
		Timezone:      "Asia/Tokyo",
	}
}

func newTestService(profiles *mockProfileRepo, goals *mockGoalRepo, r *mockRescheduler) (*Service, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	var rescheduler Rescheduler
	if r != nil {
		rescheduler = r
	}
	svc := NewService(profiles, goals, NewDayResolver(profiles, goals), rescheduler, logger)
	svc.now = func() time.Time { return testNow }
	return svc, &buf
}
