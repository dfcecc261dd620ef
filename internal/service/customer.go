package service

import (
	"context"

	"KuroAccounts/internal/biz"
	"KuroAccounts/internal/model"
	pkglog "KuroAccounts/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/go-playground/validator/v10"
)

// Operations of the customer routes.
const (
	OperationFetchCustomerDetails = "/api/fetchCustomerDetails"
	OperationCircuits             = "/api/circuits"
)

// CustomerService serves the aggregated customer view and the breaker
// snapshot.
type CustomerService struct {
	uc       *biz.CustomerUsecase
	validate *validator.Validate
	logger   *log.Helper
}

// NewCustomerService creates a new CustomerService instance.
func NewCustomerService(uc *biz.CustomerUsecase, v *validator.Validate, logger log.Logger) *CustomerService {
	return &CustomerService{
		uc:       uc,
		validate: v,
		logger:   log.NewHelper(logger),
	}
}

// FetchCustomerDetails returns the customer view of mobileNumber. The
// correlation id comes from the request context and is generated when the
// caller sent none.
func (s *CustomerService) FetchCustomerDetails(ctx context.Context, mobileNumber string) (*model.CustomerDetails, error) {
	if err := validateMobileNumber(s.validate, mobileNumber); err != nil {
		logRejected(s.logger, OperationFetchCustomerDetails, err)
		return nil, err
	}

	correlationID := pkglog.GetCorrelationID(ctx)
	if correlationID == "" {
		correlationID = pkglog.GenerateCorrelationID()
		ctx = pkglog.WithRequestContext(ctx, correlationID, OperationFetchCustomerDetails)
	}
	s.logger.Debugw("msg", "fetchCustomerDetails called", "correlation_id", correlationID)

	return s.uc.FetchCustomerDetails(ctx, mobileNumber, correlationID)
}

// Circuits returns the state of every downstream breaker.
func (s *CustomerService) Circuits(context.Context) ([]*model.CircuitState, error) {
	return s.uc.CircuitStates(), nil
}

// RegisterCustomerHTTPServer mounts the customer routes on r.
func RegisterCustomerHTTPServer(r *http.Router, s *CustomerService) {
	r.GET("/fetchCustomerDetails", fetchCustomerDetailsHandler(s))
	r.GET("/circuits", circuitsHandler(s))
}

func fetchCustomerDetailsHandler(s *CustomerService) http.HandlerFunc {
	return func(ctx http.Context) error {
		mobileNumber := ctx.Query().Get("mobileNumber")
		http.SetOperation(ctx, OperationFetchCustomerDetails)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return s.FetchCustomerDetails(ctx, req.(string))
		})
		out, err := h(ctx, mobileNumber)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func circuitsHandler(s *CustomerService) http.HandlerFunc {
	return func(ctx http.Context) error {
		http.SetOperation(ctx, OperationCircuits)
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return s.Circuits(ctx)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
