package biz

import (
	"context"
	"testing"
	"time"

	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCards struct {
	fn func(ctx context.Context) (*model.CardsDetails, error)
}

func (f *fakeCards) FetchCards(ctx context.Context, _, _ string) (*model.CardsDetails, error) {
	return f.fn(ctx)
}

type fakeLoans struct {
	fn func(ctx context.Context) (*model.LoansDetails, error)
}

func (f *fakeLoans) FetchLoans(ctx context.Context, _, _ string) (*model.LoansDetails, error) {
	return f.fn(ctx)
}

func cardsOK(context.Context) (*model.CardsDetails, error) {
	return &model.CardsDetails{MobileNumber: "4354437687", CardNumber: "100646930341", CardType: "Credit Card"}, nil
}

func loansOK(context.Context) (*model.LoansDetails, error) {
	return &model.LoansDetails{MobileNumber: "4354437687", LoanNumber: "548732457654", LoanType: "Home Loan"}, nil
}

func testDownstream(deadline time.Duration) *conf.Downstream {
	dep := func() *conf.Dependency {
		return &conf.Dependency{FailureThreshold: 5, OpenDuration: time.Minute, RetryCount: 1, AttemptTimeout: time.Second}
	}
	return &conf.Downstream{Cards: dep(), Loans: dep(), AggregationDeadline: deadline}
}

func newTestOrchestrator(t *testing.T, repo CustomerRepo, cards CardsFetcher, loans LoansFetcher, deadline time.Duration) *AggregationOrchestrator {
	t.Helper()
	c := testDownstream(deadline)
	breakers := NewCircuitBreakerRegistry(c, nil, log.DefaultLogger)
	return NewAggregationOrchestrator(c, repo, cards, loans, breakers, nil, log.DefaultLogger)
}

func repoWithCustomer(ctx context.Context) *MockCustomerRepo {
	repo := new(MockCustomerRepo)
	repo.On("FindCustomerByMobile", ctx, "4354437687").
		Return(&data.Customer{ID: 3, Name: "Madan Reddy", Email: "tutor@example.com", MobileNumber: "4354437687"}, nil)
	repo.On("FindAccountByCustomerID", ctx, int64(3)).
		Return(&data.Account{AccountNumber: 1234567890, CustomerID: 3, AccountType: model.AccountTypeSavings, BranchAddress: model.BranchAddress}, nil)
	return repo
}

func TestAggregate_AllAvailable(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, repoWithCustomer(ctx), &fakeCards{fn: cardsOK}, &fakeLoans{fn: loansOK}, time.Second)

	view, err := o.Aggregate(ctx, "4354437687", "abc123")

	require.NoError(t, err)
	assert.Equal(t, "Madan Reddy", view.Name)
	require.NotNil(t, view.Account)
	assert.Equal(t, int64(1234567890), view.Account.AccountNumber)
	require.NotNil(t, view.Cards)
	assert.Equal(t, "100646930341", view.Cards.CardNumber)
	require.NotNil(t, view.Loans)
	assert.Equal(t, "548732457654", view.Loans.LoanNumber)
}

func TestAggregate_DeadlineReturnsPartialView(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	hung := &fakeLoans{fn: func(context.Context) (*model.LoansDetails, error) {
		<-release
		return &model.LoansDetails{}, nil
	}}
	o := newTestOrchestrator(t, repoWithCustomer(ctx), &fakeCards{fn: cardsOK}, hung, 100*time.Millisecond)

	start := time.Now()
	view, err := o.Aggregate(ctx, "4354437687", "abc123")

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.NotNil(t, view.Account)
	assert.NotNil(t, view.Cards)
	assert.Nil(t, view.Loans)
}

func TestAggregate_DependencyFailureUsesFallback(t *testing.T) {
	ctx := context.Background()
	down := &fakeCards{fn: func(context.Context) (*model.CardsDetails, error) {
		return nil, errCardsDown
	}}
	o := newTestOrchestrator(t, repoWithCustomer(ctx), down, &fakeLoans{fn: loansOK}, time.Second)

	view, err := o.Aggregate(ctx, "4354437687", "abc123")

	require.NoError(t, err)
	assert.Nil(t, view.Cards)
	assert.NotNil(t, view.Loans)
}

func TestAggregate_NotFound(t *testing.T) {
	ctx := context.Background()
	cards := &fakeCards{fn: func(context.Context) (*model.CardsDetails, error) {
		t.Error("cards must not be called for an unknown customer")
		return nil, nil
	}}

	t.Run("customer", func(t *testing.T) {
		repo := new(MockCustomerRepo)
		repo.On("FindCustomerByMobile", ctx, "1111111111").Return(nil, errNotFound)
		o := newTestOrchestrator(t, repo, cards, &fakeLoans{fn: loansOK}, time.Second)

		_, err := o.Aggregate(ctx, "1111111111", "abc123")

		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
		assert.Equal(t, "CUSTOMER_NOT_FOUND", errors.Reason(err))
	})

	t.Run("account", func(t *testing.T) {
		repo := new(MockCustomerRepo)
		repo.On("FindCustomerByMobile", ctx, "4354437687").Return(&data.Customer{ID: 3}, nil)
		repo.On("FindAccountByCustomerID", ctx, int64(3)).Return(nil, errNotFound)
		o := newTestOrchestrator(t, repo, cards, &fakeLoans{fn: loansOK}, time.Second)

		_, err := o.Aggregate(ctx, "4354437687", "abc123")

		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
		assert.Equal(t, "ACCOUNT_NOT_FOUND", errors.Reason(err))
	})
}

func TestAggregate_RepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCustomerRepo)
	repo.On("FindCustomerByMobile", ctx, "4354437687").Return(nil, assert.AnError)
	o := newTestOrchestrator(t, repo, &fakeCards{fn: cardsOK}, &fakeLoans{fn: loansOK}, time.Second)

	_, err := o.Aggregate(ctx, "4354437687", "abc123")

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, errors.IsNotFound(err))
}
