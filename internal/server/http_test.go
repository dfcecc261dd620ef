package server

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"KuroAccounts/internal/biz"
	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"
	"KuroAccounts/internal/service"
	pkgerrors "KuroAccounts/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memoryRepo is an in-memory biz.CustomerRepo.
type memoryRepo struct {
	mu        sync.Mutex
	nextID    int64
	customers map[int64]*data.Customer
	accounts  map[int64]*data.Account
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{customers: map[int64]*data.Customer{}, accounts: map[int64]*data.Account{}}
}

var errNotFound error = pkgerrors.ClassifyDBError(gorm.ErrRecordNotFound)

func (r *memoryRepo) FindCustomerByMobile(_ context.Context, mobileNumber string) (*data.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.MobileNumber == mobileNumber {
			cp := *c
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (r *memoryRepo) FindCustomerByID(_ context.Context, customerID int64) (*data.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.customers[customerID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, errNotFound
}

func (r *memoryRepo) FindAccountByCustomerID(_ context.Context, customerID int64) (*data.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.CustomerID == customerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (r *memoryRepo) FindAccountByNumber(_ context.Context, accountNumber int64) (*data.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[accountNumber]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, errNotFound
}

func (r *memoryRepo) CreateCustomerWithAccount(_ context.Context, customer *data.Customer, account *data.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	customer.ID = r.nextID
	account.CustomerID = customer.ID
	c, a := *customer, *account
	r.customers[c.ID] = &c
	r.accounts[a.AccountNumber] = &a
	return nil
}

func (r *memoryRepo) UpdateCustomerAndAccount(_ context.Context, customer *data.Customer, account *data.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, a := *customer, *account
	r.customers[c.ID] = &c
	r.accounts[a.AccountNumber] = &a
	return nil
}

func (r *memoryRepo) DeleteCustomer(_ context.Context, customerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.customers, customerID)
	for n, a := range r.accounts {
		if a.CustomerID == customerID {
			delete(r.accounts, n)
		}
	}
	return nil
}

func (r *memoryRepo) UpdateCommunicationSwitch(_ context.Context, accountNumber int64, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountNumber]
	if !ok {
		return errNotFound
	}
	a.CommunicationSw = on
	return nil
}

func (r *memoryRepo) CountAccounts(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.accounts)), nil
}

type testServer struct {
	srv      *http.Server
	repo     *memoryRepo
	breakers *biz.CircuitBreakerRegistry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := log.DefaultLogger

	downstream := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"mobileNumber":"` + r.URL.Query().Get("mobileNumber") + `"}`))
	}))
	t.Cleanup(downstream.Close)

	dep := &conf.Dependency{BaseURL: downstream.URL, FailureThreshold: 3, OpenDuration: time.Minute, RetryCount: 1, AttemptTimeout: time.Second}
	dc := &conf.Downstream{Cards: dep, Loans: dep, AggregationDeadline: time.Second}
	cards, err := data.NewCardsClient(dc, logger)
	require.NoError(t, err)
	loans, err := data.NewLoansClient(dc, logger)
	require.NoError(t, err)

	repo := newMemoryRepo()
	breakers := biz.NewCircuitBreakerRegistry(dc, nil, logger)
	cache := biz.NewCustomerDetailsCache(&conf.Cache{Size: 10, TTL: time.Minute}, nil, logger)
	publisher, cleanup := biz.NewEventPublisher(&conf.Events{Workers: 1}, data.NewLogBus(logger), nil, nil, logger)
	t.Cleanup(cleanup)

	v := service.NewValidator()
	accounts := service.NewAccountService(biz.NewAccountUsecase(repo, cache, publisher, nil, logger), v, logger)
	orchestrator := biz.NewAggregationOrchestrator(dc, repo, cards, loans, breakers, nil, logger)
	customers := service.NewCustomerService(biz.NewCustomerUsecase(cache, orchestrator, breakers, logger), v, logger)

	return &testServer{
		srv:      NewHTTPServer(&conf.Server{HTTP: &conf.Transport{Addr: "127.0.0.1:0"}}, accounts, customers, logger),
		repo:     repo,
		breakers: breakers,
	}
}

func (ts *testServer) do(method, target, body string, header nethttp.Header) *httptest.ResponseRecorder {
	var req *nethttp.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func TestHTTP_AccountLifecycle(t *testing.T) {
	ts := newTestServer(t)
	customer := `{"name":"Madan Reddy","email":"tutor@example.com","mobileNumber":"4354437687"}`

	rec := ts.do(nethttp.MethodPost, "/api/create", customer, nil)
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	var created service.ResponseDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, service.Status201, created.StatusCode)

	rec = ts.do(nethttp.MethodPost, "/api/create", customer, nil)
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	rec = ts.do(nethttp.MethodGet, "/api/fetch?mobileNumber=4354437687", "", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var fetched model.Customer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	require.NotNil(t, fetched.Account)
	assert.Equal(t, model.AccountTypeSavings, fetched.Account.AccountType)
	assert.False(t, fetched.Account.CommunicationSwitch)

	rec = ts.do(nethttp.MethodPatch, "/api/communication?accountNumber="+jsonInt(fetched.Account.AccountNumber), "", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(nethttp.MethodDelete, "/api/delete?mobileNumber=4354437687", "", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)

	rec = ts.do(nethttp.MethodGet, "/api/fetch?mobileNumber=4354437687", "", nil)
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
	var notFound errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notFound))
	assert.Equal(t, "CUSTOMER_NOT_FOUND", notFound.Reason)
}

func TestHTTP_UpdateWithoutAccount(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(nethttp.MethodPut, "/api/update", `{"name":"Madan Reddy","email":"tutor@example.com","mobileNumber":"4354437687"}`, nil)

	assert.Equal(t, 417, rec.Code)
}

func TestHTTP_FetchCustomerDetailsEchoesCorrelationID(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(nethttp.MethodPost, "/api/create", `{"name":"Madan Reddy","email":"tutor@example.com","mobileNumber":"4354437687"}`, nil)
	require.Equal(t, nethttp.StatusCreated, rec.Code)

	rec = ts.do(nethttp.MethodGet, "/api/fetchCustomerDetails?mobileNumber=4354437687", "",
		nethttp.Header{data.CorrelationIDHeader: {"abc123"}})

	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "abc123", rec.Header().Get(data.CorrelationIDHeader))
	var view model.CustomerDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "Madan Reddy", view.Name)
	require.NotNil(t, view.Cards)
	assert.Equal(t, "4354437687", view.Cards.MobileNumber)
	require.NotNil(t, view.Loans)
}

func TestHTTP_GeneratesCorrelationID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(nethttp.MethodGet, "/api/fetchCustomerDetails?mobileNumber=12345", "", nil)

	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Len(t, rec.Header().Get(data.CorrelationIDHeader), 12)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_ARGUMENT", body.Reason)
}

func TestHTTP_Circuits(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(nethttp.MethodGet, "/api/circuits", "", nil)

	require.Equal(t, nethttp.StatusOK, rec.Code)
	var states []model.CircuitState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 2)
	assert.Equal(t, "cards", states[0].Dependency)
	assert.Equal(t, model.CircuitClosed, states[0].Mode)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
