package biz

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type customerFixture struct {
	uc         *CustomerUsecase
	repo       *MockCustomerRepo
	cache      *ResultCache[*model.CustomerDetails]
	cardsCalls *atomic.Int32
}

func setupCustomerUsecase(t *testing.T) *customerFixture {
	t.Helper()
	var cardsCalls atomic.Int32
	cards := &fakeCards{fn: func(ctx context.Context) (*model.CardsDetails, error) {
		cardsCalls.Add(1)
		return cardsOK(ctx)
	}}

	// Aggregation runs on a context detached from the caller, so the mock
	// matches any context.
	repo := new(MockCustomerRepo)
	repo.On("FindCustomerByMobile", mock.Anything, "4354437687").
		Return(&data.Customer{ID: 3, Name: "Madan Reddy", MobileNumber: "4354437687"}, nil)
	repo.On("FindAccountByCustomerID", mock.Anything, int64(3)).
		Return(&data.Account{AccountNumber: 1234567890, CustomerID: 3, AccountType: model.AccountTypeSavings}, nil)
	repo.On("FindCustomerByMobile", mock.Anything, "1111111111").Return(nil, errNotFound)

	c := testDownstream(time.Second)
	breakers := NewCircuitBreakerRegistry(c, nil, log.DefaultLogger)
	orchestrator := NewAggregationOrchestrator(c, repo, cards, &fakeLoans{fn: loansOK}, breakers, nil, log.DefaultLogger)
	cache := NewCustomerDetailsCache(&conf.Cache{Size: 100, TTL: time.Minute}, nil, log.DefaultLogger)

	return &customerFixture{
		uc:         NewCustomerUsecase(cache, orchestrator, breakers, log.DefaultLogger),
		repo:       repo,
		cache:      cache,
		cardsCalls: &cardsCalls,
	}
}

func TestFetchCustomerDetails_CachesView(t *testing.T) {
	f := setupCustomerUsecase(t)
	ctx := context.Background()

	first, err := f.uc.FetchCustomerDetails(ctx, "4354437687", "abc123")
	require.NoError(t, err)
	require.NotNil(t, first.Cards)
	assert.Equal(t, "Madan Reddy", first.Name)

	second, err := f.uc.FetchCustomerDetails(ctx, "4354437687", "def456")
	require.NoError(t, err)
	assert.Same(t, first, second)

	assert.Equal(t, int32(1), f.cardsCalls.Load())
	f.repo.AssertNumberOfCalls(t, "FindCustomerByMobile", 1)
	assert.Equal(t, CacheStats{Name: data.CacheKeyCustomerDetails, Size: 1, Hits: 1, Misses: 1}, f.uc.CacheStats())
}

func TestFetchCustomerDetails_NotFoundIsNotCached(t *testing.T) {
	f := setupCustomerUsecase(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.uc.FetchCustomerDetails(ctx, "1111111111", "abc123")
		require.Error(t, err)
		assert.Equal(t, "CUSTOMER_NOT_FOUND", errors.Reason(err))
	}

	f.repo.AssertNumberOfCalls(t, "FindCustomerByMobile", 2)
	assert.Equal(t, 0, f.uc.CacheStats().Size)
}

func TestFetchCustomerDetails_InvalidateRebuilds(t *testing.T) {
	f := setupCustomerUsecase(t)
	ctx := context.Background()

	_, err := f.uc.FetchCustomerDetails(ctx, "4354437687", "abc123")
	require.NoError(t, err)

	f.cache.Invalidate(ctx, "4354437687")

	_, err = f.uc.FetchCustomerDetails(ctx, "4354437687", "abc123")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.cardsCalls.Load())
}

func TestCustomerUsecase_CircuitStates(t *testing.T) {
	f := setupCustomerUsecase(t)

	states := f.uc.CircuitStates()

	require.Len(t, states, 2)
	assert.Equal(t, data.DependencyCards, states[0].Dependency)
	assert.Equal(t, data.DependencyLoans, states[1].Dependency)
	for _, s := range states {
		assert.Equal(t, model.CircuitClosed, s.Mode)
	}
}
