package service

import (
	"context"

	"KuroAccounts/internal/biz"
	"KuroAccounts/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/go-playground/validator/v10"
)

// Operations of the account routes, used by the middleware matcher and logs.
const (
	OperationCreateAccount             = "/api/create"
	OperationFetchAccount              = "/api/fetch"
	OperationUpdateAccount             = "/api/update"
	OperationDeleteAccount             = "/api/delete"
	OperationUpdateCommunicationStatus = "/api/communication"
)

// AccountService serves the account CRUD routes.
type AccountService struct {
	uc       *biz.AccountUsecase
	validate *validator.Validate
	logger   *log.Helper
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(uc *biz.AccountUsecase, v *validator.Validate, logger log.Logger) *AccountService {
	return &AccountService{
		uc:       uc,
		validate: v,
		logger:   log.NewHelper(logger),
	}
}

// CreateAccount creates a customer with a new savings account.
func (s *AccountService) CreateAccount(ctx context.Context, req *model.Customer) (*ResponseDto, error) {
	if err := validate(s.validate, req); err != nil {
		logRejected(s.logger, OperationCreateAccount, err)
		return nil, err
	}

	if err := s.uc.CreateAccount(ctx, req); err != nil {
		return nil, err
	}
	return &ResponseDto{StatusCode: Status201, StatusMsg: Message201}, nil
}

// FetchAccount returns the customer and account registered with mobileNumber.
func (s *AccountService) FetchAccount(ctx context.Context, mobileNumber string) (*model.Customer, error) {
	if err := validateMobileNumber(s.validate, mobileNumber); err != nil {
		logRejected(s.logger, OperationFetchAccount, err)
		return nil, err
	}
	return s.uc.FetchAccount(ctx, mobileNumber)
}

// UpdateAccount updates the account and customer identified by req.Account.
func (s *AccountService) UpdateAccount(ctx context.Context, req *model.Customer) (*ResponseDto, error) {
	if err := validate(s.validate, req); err != nil {
		logRejected(s.logger, OperationUpdateAccount, err)
		return nil, err
	}

	updated, err := s.uc.UpdateAccount(ctx, req)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, expectationFailed(Message417Update)
	}
	return &ResponseDto{StatusCode: Status200, StatusMsg: Message200}, nil
}

// DeleteAccount removes the customer registered with mobileNumber.
func (s *AccountService) DeleteAccount(ctx context.Context, mobileNumber string) (*ResponseDto, error) {
	if err := validateMobileNumber(s.validate, mobileNumber); err != nil {
		logRejected(s.logger, OperationDeleteAccount, err)
		return nil, err
	}

	deleted, err := s.uc.DeleteAccount(ctx, mobileNumber)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, expectationFailed(Message417Delete)
	}
	return &ResponseDto{StatusCode: Status200, StatusMsg: Message200}, nil
}

// UpdateCommunicationStatus marks the account's communication as sent.
func (s *AccountService) UpdateCommunicationStatus(ctx context.Context, accountNumber int64) (*ResponseDto, error) {
	updated, err := s.uc.UpdateCommunicationStatus(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, expectationFailed(Message417Update)
	}
	return &ResponseDto{StatusCode: Status200, StatusMsg: Message200}, nil
}

// RegisterAccountHTTPServer mounts the account routes on r.
func RegisterAccountHTTPServer(r *http.Router, s *AccountService) {
	r.POST("/create", createAccountHandler(s))
	r.GET("/fetch", fetchAccountHandler(s))
	r.PUT("/update", updateAccountHandler(s))
	r.DELETE("/delete", deleteAccountHandler(s))
	r.PATCH("/communication", updateCommunicationHandler(s))
}

func createAccountHandler(s *AccountService) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in model.Customer
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreateAccount)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return s.CreateAccount(ctx, req.(*model.Customer))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(201, out)
	}
}

func fetchAccountHandler(s *AccountService) http.HandlerFunc {
	return func(ctx http.Context) error {
		mobileNumber := ctx.Query().Get("mobileNumber")
		http.SetOperation(ctx, OperationFetchAccount)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return s.FetchAccount(ctx, req.(string))
		})
		out, err := h(ctx, mobileNumber)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func updateAccountHandler(s *AccountService) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in model.Customer
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationUpdateAccount)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return s.UpdateAccount(ctx, req.(*model.Customer))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func deleteAccountHandler(s *AccountService) http.HandlerFunc {
	return func(ctx http.Context) error {
		mobileNumber := ctx.Query().Get("mobileNumber")
		http.SetOperation(ctx, OperationDeleteAccount)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return s.DeleteAccount(ctx, req.(string))
		})
		out, err := h(ctx, mobileNumber)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func updateCommunicationHandler(s *AccountService) http.HandlerFunc {
	return func(ctx http.Context) error {
		accountNumber, err := parseAccountNumber(ctx.Query().Get("accountNumber"))
		if err != nil {
			return err
		}
		http.SetOperation(ctx, OperationUpdateCommunicationStatus)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return s.UpdateCommunicationStatus(ctx, req.(int64))
		})
		out, err := h(ctx, accountNumber)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
