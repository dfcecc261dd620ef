package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"KuroAccounts/internal/biz"
	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"
	pkglog "KuroAccounts/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newDownstream starts a fake cards or loans service that records the
// correlation ids it receives.
func newDownstream(t *testing.T, body interface{}, seen *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen.Store(r.Header.Get(data.CorrelationIDHeader))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupCustomerService(t *testing.T, cardsURL, loansURL string) (*CustomerService, *MockCustomerRepo) {
	t.Helper()
	logger := log.DefaultLogger
	dep := func(url string) *conf.Dependency {
		return &conf.Dependency{BaseURL: url, FailureThreshold: 3, OpenDuration: time.Minute, RetryCount: 1, AttemptTimeout: time.Second}
	}
	downstream := &conf.Downstream{Cards: dep(cardsURL), Loans: dep(loansURL), AggregationDeadline: 2 * time.Second}

	cards, err := data.NewCardsClient(downstream, logger)
	require.NoError(t, err)
	loans, err := data.NewLoansClient(downstream, logger)
	require.NoError(t, err)

	repo := new(MockCustomerRepo)
	breakers := biz.NewCircuitBreakerRegistry(downstream, nil, logger)
	orchestrator := biz.NewAggregationOrchestrator(downstream, repo, cards, loans, breakers, nil, logger)
	cache := biz.NewCustomerDetailsCache(&conf.Cache{Size: 10, TTL: time.Minute}, nil, logger)
	uc := biz.NewCustomerUsecase(cache, orchestrator, breakers, logger)

	return NewCustomerService(uc, NewValidator(), logger), repo
}

func TestFetchCustomerDetails(t *testing.T) {
	var seen atomic.Value
	cardsSrv := newDownstream(t, model.CardsDetails{MobileNumber: "4354437687", CardNumber: "100646930341"}, &seen)
	loansSrv := newDownstream(t, model.LoansDetails{MobileNumber: "4354437687", LoanNumber: "548732457654"}, nil)
	svc, repo := setupCustomerService(t, cardsSrv.URL, loansSrv.URL)

	repo.On("FindCustomerByMobile", mock.Anything, "4354437687").
		Return(&data.Customer{ID: 3, Name: "Madan Reddy", MobileNumber: "4354437687"}, nil)
	repo.On("FindAccountByCustomerID", mock.Anything, int64(3)).
		Return(&data.Account{AccountNumber: 1234567890, AccountType: model.AccountTypeSavings}, nil)

	ctx := pkglog.WithRequestContext(context.Background(), "abc123", OperationFetchCustomerDetails)
	view, err := svc.FetchCustomerDetails(ctx, "4354437687")

	require.NoError(t, err)
	require.NotNil(t, view.Cards)
	assert.Equal(t, "100646930341", view.Cards.CardNumber)
	require.NotNil(t, view.Loans)
	assert.Equal(t, "548732457654", view.Loans.LoanNumber)
	assert.Equal(t, "abc123", seen.Load())
}

func TestFetchCustomerDetails_GeneratesCorrelationID(t *testing.T) {
	var seen atomic.Value
	cardsSrv := newDownstream(t, model.CardsDetails{}, &seen)
	loansSrv := newDownstream(t, model.LoansDetails{}, nil)
	svc, repo := setupCustomerService(t, cardsSrv.URL, loansSrv.URL)

	repo.On("FindCustomerByMobile", mock.Anything, "4354437687").Return(&data.Customer{ID: 3}, nil)
	repo.On("FindAccountByCustomerID", mock.Anything, int64(3)).Return(&data.Account{AccountNumber: 1234567890}, nil)

	_, err := svc.FetchCustomerDetails(context.Background(), "4354437687")
	require.NoError(t, err)

	id, _ := seen.Load().(string)
	assert.Len(t, id, 12)
}

func TestFetchCustomerDetails_DownstreamDown(t *testing.T) {
	svc, repo := setupCustomerService(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	repo.On("FindCustomerByMobile", mock.Anything, "4354437687").Return(&data.Customer{ID: 3, Name: "Madan Reddy"}, nil)
	repo.On("FindAccountByCustomerID", mock.Anything, int64(3)).Return(&data.Account{AccountNumber: 1234567890}, nil)

	view, err := svc.FetchCustomerDetails(context.Background(), "4354437687")

	require.NoError(t, err)
	assert.Equal(t, "Madan Reddy", view.Name)
	assert.NotNil(t, view.Account)
	assert.Nil(t, view.Cards)
	assert.Nil(t, view.Loans)
}

func TestFetchCustomerDetails_Validation(t *testing.T) {
	svc, repo := setupCustomerService(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	_, err := svc.FetchCustomerDetails(context.Background(), "43544")

	assert.True(t, errors.IsBadRequest(err))
	repo.AssertNotCalled(t, "FindCustomerByMobile", mock.Anything, mock.Anything)
}

func TestCircuits(t *testing.T) {
	svc, _ := setupCustomerService(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	states, err := svc.Circuits(context.Background())

	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, data.DependencyCards, states[0].Dependency)
	assert.Equal(t, uint32(3), states[0].FailureThreshold)
}
