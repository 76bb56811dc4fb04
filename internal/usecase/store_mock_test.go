package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"phrasematch/internal/adapter/analyzer"
	"phrasematch/internal/adapter/metrics"
	"phrasematch/internal/domain"
	"phrasematch/internal/logging"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) PutRecords(records []domain.Record) error {
	return m.Called(records).Error(0)
}

func (m *mockStore) AppendRecords(records []domain.Record) ([]domain.Record, error) {
	args := m.Called(records)
	out, _ := args.Get(0).([]domain.Record)
	return out, args.Error(1)
}

func (m *mockStore) ReplaceRecords(records []domain.Record) ([]domain.Record, error) {
	args := m.Called(records)
	out, _ := args.Get(0).([]domain.Record)
	return out, args.Error(1)
}

func (m *mockStore) GetRecord(position int) (domain.Record, error) {
	args := m.Called(position)
	return args.Get(0).(domain.Record), args.Error(1)
}

func (m *mockStore) ListRecords() ([]domain.Record, error) {
	args := m.Called()
	out, _ := args.Get(0).([]domain.Record)
	return out, args.Error(1)
}

func (m *mockStore) Count() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func (m *mockStore) GetStats() (domain.Stats, error) {
	args := m.Called()
	return args.Get(0).(domain.Stats), args.Error(1)
}

func (m *mockStore) UpdateStats(stats domain.Stats) error {
	return m.Called(stats).Error(0)
}

func (m *mockStore) Clear() error {
	return m.Called().Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

var errStore = errors.New("disk full")

func TestLoad_ReplaceIsOneStoreCall(t *testing.T) {
	st := new(mockStore)
	st.On("ReplaceRecords", mock.MatchedBy(func(recs []domain.Record) bool {
		return len(recs) == 4
	})).Return(nil, errStore)

	loader := NewLoadUseCase(st, analyzer.NewNormalizer(""), 0, logging.Discard())
	_, err := loader.Load(context.Background(), staticSource{records: wristRecords}, true)
	require.ErrorIs(t, err, errStore)

	st.AssertExpectations(t)
	st.AssertNotCalled(t, "Clear")
	st.AssertNotCalled(t, "AppendRecords", mock.Anything)
}

func TestIngest_StoreFailure(t *testing.T) {
	st := new(mockStore)
	st.On("AppendRecords", mock.MatchedBy(func(recs []domain.Record) bool {
		return len(recs) == 1 && recs[0].Phrase == "fever"
	})).Return(nil, errStore)

	loader := NewLoadUseCase(st, analyzer.NewNormalizer(""), 0, logging.Discard())
	kept, err := loader.Ingest(context.Background(), domain.Record{Code: "R50", Phrase: " Fever "})
	require.ErrorIs(t, err, errStore)
	assert.False(t, kept)
	st.AssertExpectations(t)
}

func TestBuild_ListFailureIsCounted(t *testing.T) {
	st := new(mockStore)
	st.On("ListRecords").Return(nil, errStore)
	m := metrics.New()

	_, err := NewBuildUseCase(st, m, logging.Discard()).Build(context.Background(), nil)
	require.ErrorIs(t, err, errStore)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("error")))
	st.AssertNotCalled(t, "UpdateStats", mock.Anything)
}

func TestBuild_UpdateStatsFailure(t *testing.T) {
	st := new(mockStore)
	st.On("ListRecords").Return([]domain.Record{{Position: 0, Code: "R50", Phrase: "fever"}}, nil)
	st.On("UpdateStats", mock.AnythingOfType("domain.Stats")).Return(errStore)

	_, err := NewBuildUseCase(st, nil, logging.Discard()).Build(context.Background(), nil)
	require.ErrorIs(t, err, errStore)
	st.AssertExpectations(t)
}

func TestReload_FailureKeepsLiveIndex(t *testing.T) {
	st := new(mockStore)
	st.On("ListRecords").Return([]domain.Record{{Position: 7, Code: "R50", Phrase: "fever"}}, nil).Once()
	st.On("ListRecords").Return(nil, errStore).Once()
	st.On("UpdateStats", mock.Anything).Return(nil)

	search := NewSearchUseCase(NewBuildUseCase(st, nil, logging.Discard()), nil, nil, SearchConfig{}, logging.Discard())
	_, err := search.Reload(context.Background())
	require.NoError(t, err)

	_, err = search.Reload(context.Background())
	require.ErrorIs(t, err, errStore)

	matches, err := search.Search("fevr", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []int{7}, matches[0].Positions)
	assert.Equal(t, []string{"R50"}, matches[0].Codes)
	st.AssertExpectations(t)
}
