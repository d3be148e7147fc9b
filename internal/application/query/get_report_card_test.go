package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/internal/domain/academic"
	"github.com/school-hub/gradebook/internal/domain/closing"
	"github.com/school-hub/gradebook/internal/domain/result"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/internal/infrastructure/persistence/memory"
	"github.com/school-hub/gradebook/pkg/logger"
)

var testNow = time.Date(2024, 6, 28, 15, 0, 0, 0, time.UTC)

type mapCache struct {
	cards map[string]*ReportCardDTO
	gets  int
}

func newMapCache() *mapCache {
	return &mapCache{cards: make(map[string]*ReportCardDTO)}
}

func (c *mapCache) Get(_ context.Context, studentID, classGroupID string) (*ReportCardDTO, error) {
	c.gets++
	if card, ok := c.cards[studentID+"|"+classGroupID]; ok {
		return card, nil
	}
	return nil, ErrReportCardMiss
}

func (c *mapCache) Set(_ context.Context, card *ReportCardDTO) error {
	c.cards[card.StudentID+"|"+card.ClassGroupID] = card
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, studentID, classGroupID string) error {
	delete(c.cards, studentID+"|"+classGroupID)
	return nil
}

type featureSwitch bool

func (f featureSwitch) EnabledForSchool(string, string) bool { return bool(f) }

func seedResults(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	store.PutClassGroup(academic.ClassGroup{ID: "class-1", SchoolID: "school-1", AcademicYear: 2024, GradeLevel: "5"})

	averages := memory.NewPeriodAverageRepository(store)
	for i, p := range []string{"p2", "p1"} {
		v := float64(6 + i)
		require.NoError(t, averages.Upsert(context.Background(), &result.PeriodAverage{
			PeriodAverageKey:    result.PeriodAverageKey{StudentID: "s1", ClassGroupID: "class-1", TeacherAssignmentID: "ta-1", PeriodID: p},
			NumericAverage:      &v,
			FrequencyPercentage: 95,
			CalculatedAt:        testNow,
		}))
	}
	return store
}

func newReportCardHandler(store *memory.Store, cache ReportCardCache, features FeatureChecker) *GetReportCardHandler {
	return NewGetReportCardHandler(
		memory.NewDirectory(store),
		memory.NewPeriodAverageRepository(store),
		memory.NewFinalResultRepository(store),
		cache,
		features,
		logger.Discard(),
	)
}

func TestGetReportCard_WithoutFinalResult(t *testing.T) {
	store := seedResults(t)
	h := newReportCardHandler(store, nil, nil)

	card, err := h.Handle(context.Background(), GetReportCardQuery{StudentID: "s1", ClassGroupID: "class-1"})
	require.NoError(t, err)

	require.Len(t, card.Periods, 2)
	assert.Equal(t, "p1", card.Periods[0].PeriodID)
	assert.Equal(t, 7.0, *card.Periods[0].NumericAverage)
	assert.Equal(t, 2024, card.AcademicYear)
	assert.Nil(t, card.Final)
}

func TestGetReportCard_IncludesFinalResult(t *testing.T) {
	store := seedResults(t)
	avg := 6.5
	require.NoError(t, memory.NewFinalResultRepository(store).Upsert(context.Background(), &result.FinalResult{
		FinalResultKey:   result.FinalResultKey{StudentID: "s1", ClassGroupID: "class-1", AcademicYear: 2024},
		Outcome:          result.OutcomeApproved,
		OverallAverage:   &avg,
		OverallFrequency: 95,
		DeterminedBy:     "coord-1",
		DeterminedAt:     testNow,
	}))

	card, err := newReportCardHandler(store, nil, nil).Handle(context.Background(),
		GetReportCardQuery{StudentID: "s1", ClassGroupID: "class-1"})
	require.NoError(t, err)
	require.NotNil(t, card.Final)
	assert.Equal(t, "approved", card.Final.Outcome)
	assert.Equal(t, 6.5, *card.Final.OverallAverage)
}

func TestGetReportCard_Cache(t *testing.T) {
	t.Run("second read is served from cache", func(t *testing.T) {
		store := seedResults(t)
		cache := newMapCache()
		h := newReportCardHandler(store, cache, featureSwitch(true))
		q := GetReportCardQuery{StudentID: "s1", ClassGroupID: "class-1"}

		first, err := h.Handle(context.Background(), q)
		require.NoError(t, err)
		assert.Len(t, cache.cards, 1)

		second, err := h.Handle(context.Background(), q)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 2, cache.gets)
	})

	t.Run("feature off bypasses cache", func(t *testing.T) {
		store := seedResults(t)
		cache := newMapCache()
		h := newReportCardHandler(store, cache, featureSwitch(false))

		_, err := h.Handle(context.Background(), GetReportCardQuery{StudentID: "s1", ClassGroupID: "class-1"})
		require.NoError(t, err)
		assert.Empty(t, cache.cards)
		assert.Zero(t, cache.gets)
	})
}

func TestGetReportCard_Validation(t *testing.T) {
	h := newReportCardHandler(memory.NewStore(), nil, nil)

	_, err := h.Handle(context.Background(), GetReportCardQuery{})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), GetReportCardQuery{StudentID: "s1", ClassGroupID: "missing"})
	assert.True(t, shared.IsNotFound(err))
}

func TestPeriodClosingQueries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	closings := memory.NewClosingRepository(store)
	rectifications := memory.NewRectificationRepository(store)

	pc := closing.NewPeriodClosing(closing.Key{ClassGroupID: "class-1", TeacherAssignmentID: "ta-1", PeriodID: "p1"}, testNow)
	pc.Status = closing.StatusClosed
	require.NoError(t, closings.Create(ctx, pc))
	other := closing.NewPeriodClosing(closing.Key{ClassGroupID: "class-1", TeacherAssignmentID: "ta-1", PeriodID: "p2"}, testNow)
	require.NoError(t, closings.Create(ctx, other))

	rec, err := closing.NewRectification(pc, closing.RectificationRequest{
		EntityType:    "attendance",
		EntityID:      "a-1",
		FieldChanged:  "status",
		OldValue:      "absent",
		NewValue:      "justified",
		Justification: "medical certificate",
	}, shared.Principal{UserID: "teacher-1", Role: shared.RoleTeacher}, testNow)
	require.NoError(t, err)
	require.NoError(t, rectifications.Create(ctx, rec))

	h := NewPeriodClosingHandler(closings, rectifications)

	dto, err := h.Get(ctx, GetPeriodClosingQuery{ClosingID: pc.ID})
	require.NoError(t, err)
	assert.Equal(t, "closed", dto.Status)
	require.Len(t, dto.Rectifications, 1)
	assert.Equal(t, "requested", dto.Rectifications[0].Status)

	list, err := h.List(ctx, ListPeriodClosingsQuery{ClassGroupID: "class-1", TeacherAssignmentID: "ta-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].PeriodID)
	assert.Equal(t, "pending", list[1].Status)

	_, err = h.Get(ctx, GetPeriodClosingQuery{ClosingID: "missing"})
	assert.True(t, shared.IsNotFound(err))
}
