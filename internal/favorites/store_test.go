package favorites

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"weatherfav/internal/logger"
	"weatherfav/internal/weather"
)

func TestMain(m *testing.M) {
	logger.IsTest = true
	os.Exit(m.Run())
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, rec Record) (Record, error) {
	args := m.Called(ctx, rec)
	if r, ok := args.Get(0).(Record); ok {
		return r, args.Error(1)
	}
	return Record{}, args.Error(1)
}

func (m *MockRepository) FetchOrdered(ctx context.Context) ([]Record, error) {
	args := m.Called(ctx)
	if recs, ok := args.Get(0).([]Record); ok {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) DeleteByIdentifier(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) RewriteSortOrder(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *MockRepository) UpdateWeather(ctx context.Context, id string, report weather.Report) error {
	return m.Called(ctx, id, report).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishChange(ctx context.Context, c Change) error {
	return m.Called(ctx, c).Error(0)
}

func intp(v int) *int { return &v }

func withWeather(rec Record, temp int) Record {
	rec.Weather = &weather.Report{
		Temperature:   temp,
		Condition:     weather.ConditionClear,
		Range:         &weather.TemperatureRange{Min: temp - 2, Max: temp + 2},
		ConditionName: "clear sky",
	}
	return rec
}

func favorite(id string) Record {
	return Record{ID: id, Latitude: 48.85, Longitude: 2.35, TimeZone: "Europe/Paris", Name: id, IsFavorite: true}
}

func TestStore_CreateRequiresWeather(t *testing.T) {
	repo := new(MockRepository)
	s := NewStore(repo, nil)

	_, err := s.Create(context.Background(), favorite("a"))
	assert.ErrorIs(t, err, ErrMissingData)

	noRange := withWeather(favorite("b"), 20)
	noRange.Weather.Range = nil
	_, err = s.Create(context.Background(), noRange)
	assert.ErrorIs(t, err, ErrMissingData)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStore_CreateEmitsAdded(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	s := NewStore(repo, nil, WithPublisher(pub))
	changes := s.Changes()

	rec := withWeather(favorite(""), 21)
	stored := rec
	stored.ID = "generated"
	stored.SortOrder = intp(3)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(r Record) bool { return r.ID != "" })).Return(stored, nil)
	pub.On("PublishChange", mock.Anything, mock.MatchedBy(func(c Change) bool { return c.Kind == Added })).Return(nil)

	created, err := s.Create(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "generated", created.ID)
	require.NotNil(t, created.SortOrder)
	assert.Equal(t, 3, *created.SortOrder)

	select {
	case c := <-changes:
		assert.Equal(t, Added, c.Kind)
		assert.Equal(t, created.ID, c.Record.ID)
	default:
		t.Fatal("expected an added event")
	}
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestStore_CreateRepositoryFailureEmitsNothing(t *testing.T) {
	repo := new(MockRepository)
	s := NewStore(repo, nil)
	changes := s.Changes()

	boom := errors.New("disk full")
	repo.On("Create", mock.Anything, mock.Anything).Return(nil, boom)

	_, err := s.Create(context.Background(), withWeather(favorite("a"), 10))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, changes)
}

func TestStore_RemoveEmitsRemoved(t *testing.T) {
	repo := new(MockRepository)
	s := NewStore(repo, nil)
	changes := s.Changes()

	repo.On("DeleteByIdentifier", mock.Anything, "gone").Return(nil)

	require.NoError(t, s.Remove(context.Background(), favorite("gone")))
	c := <-changes
	assert.Equal(t, Removed, c.Kind)
	assert.Equal(t, "gone", c.Record.ID)
}

func TestStore_ReorderMismatchLeavesOrder(t *testing.T) {
	repo := new(MockRepository)
	s := NewStore(repo, nil)
	repo.On("FetchOrdered", mock.Anything).Return([]Record{favorite("a"), favorite("b"), favorite("c")}, nil)

	tests := map[string][]string{
		"partial":           {"c", "a"},
		"stale":             {"c", "a", "x"},
		"duplicates":        {"a", "a", "b"},
		"stale with repeat": {"x", "b", "a", "c", "a"},
		"empty":             {},
	}
	for name, ids := range tests {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Reorder(context.Background(), ids))
		})
	}
	repo.AssertNotCalled(t, "RewriteSortOrder", mock.Anything, mock.Anything)
}

func TestStore_ReorderRewrites(t *testing.T) {
	repo := new(MockRepository)
	s := NewStore(repo, nil)
	repo.On("FetchOrdered", mock.Anything).Return([]Record{favorite("a"), favorite("b"), favorite("c")}, nil)
	repo.On("RewriteSortOrder", mock.Anything, []string{"c", "a", "b"}).Return(nil)

	require.NoError(t, s.Reorder(context.Background(), []string{"c", "a", "b"}))
	repo.AssertExpectations(t)
}

func TestStore_ReorderKeepsCallerPositions(t *testing.T) {
	repo := new(MockRepository)
	s := NewStore(repo, nil)
	repo.On("FetchOrdered", mock.Anything).Return([]Record{favorite("a"), favorite("b"), favorite("c")}, nil)
	repo.On("RewriteSortOrder", mock.Anything, []string{"x", "b", "a", "c"}).Return(nil)

	require.NoError(t, s.Reorder(context.Background(), []string{"x", "b", "a", "c"}))
	repo.AssertExpectations(t)
}

func TestStore_SaveWeatherSkipsRemoved(t *testing.T) {
	repo := new(MockRepository)
	s := NewStore(repo, nil)

	a := withWeather(favorite("a"), 10)
	gone := withWeather(favorite("gone"), 11)
	noWeather := favorite("c")

	repo.On("UpdateWeather", mock.Anything, "a", *a.Weather).Return(nil)
	repo.On("UpdateWeather", mock.Anything, "gone", *gone.Weather).Return(ErrNotFound)

	saved, err := s.SaveWeather(context.Background(), []Record{a, gone, noWeather})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	repo.AssertNotCalled(t, "UpdateWeather", mock.Anything, "c", mock.Anything)
}

func TestStore_ChangesReplacesSubscriber(t *testing.T) {
	repo := new(MockRepository)
	s := NewStore(repo, nil)
	repo.On("DeleteByIdentifier", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, s.Remove(context.Background(), favorite("before")))

	first := s.Changes()
	second := s.Changes()

	_, open := <-first
	assert.False(t, open, "previous stream should be closed")

	require.NoError(t, s.Remove(context.Background(), favorite("after")))
	c := <-second
	assert.Equal(t, "after", c.Record.ID, "events are not replayed")

	s.Close()
	_, open = <-second
	assert.False(t, open)
}

func TestStore_FullStreamDropsEvents(t *testing.T) {
	repo := new(MockRepository)
	s := NewStore(repo, nil, WithChangeBuffer(1))
	repo.On("DeleteByIdentifier", mock.Anything, mock.Anything).Return(nil)
	changes := s.Changes()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Remove(context.Background(), favorite(id)))
	}
	assert.Len(t, changes, 1)
	assert.Equal(t, "a", (<-changes).Record.ID)
}

func TestStore_PublisherFailureDoesNotFailOperation(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	s := NewStore(repo, nil, WithPublisher(pub))
	repo.On("DeleteByIdentifier", mock.Anything, "a").Return(nil)
	pub.On("PublishChange", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	assert.NoError(t, s.Remove(context.Background(), favorite("a")))
	pub.AssertNumberOfCalls(t, "PublishChange", 1)
}

func TestRecord_CloneIsDeep(t *testing.T) {
	rec := withWeather(favorite("a"), 10)
	rec.SortOrder = intp(1)

	cp := rec.Clone()
	*cp.SortOrder = 9
	cp.Weather.Range.Max = 99

	assert.Equal(t, 1, *rec.SortOrder)
	assert.Equal(t, 12, rec.Weather.Range.Max)
}
