package biz

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"
	pkgerrors "KuroAccounts/pkg/errors"
	pkglog "KuroAccounts/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// Account numbers are 10 digits: 1000000000 + [0, 900000000).
const (
	accountNumberBase  = 1000000000
	accountNumberRange = 900000000
)

// AccountUsecase implements account business logic.
type AccountUsecase struct {
	repo      CustomerRepo
	cache     *ResultCache[*model.CustomerDetails]
	publisher *EventPublisher
	metrics   *Metrics
	logger    *pkglog.LogHelper

	newAccountNumber func() int64
}

// NewAccountUsecase creates a new account usecase.
func NewAccountUsecase(repo CustomerRepo, cache *ResultCache[*model.CustomerDetails], publisher *EventPublisher, metrics *Metrics, logger log.Logger) *AccountUsecase {
	return &AccountUsecase{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		logger:    pkglog.NewLogHelper(logger),
		newAccountNumber: func() int64 {
			return accountNumberBase + rand.Int64N(accountNumberRange)
		},
	}
}

// CreateAccount stores the customer with a new savings account. The account
// created and communication events are published without waiting for
// delivery.
func (uc *AccountUsecase) CreateAccount(ctx context.Context, customer *model.Customer) error {
	start := time.Now()
	defer func() {
		uc.metrics.RecordCreationDuration(ctx, time.Since(start))
	}()

	_, err := uc.repo.FindCustomerByMobile(ctx, customer.MobileNumber)
	switch {
	case err == nil:
		uc.metrics.RecordCreationError(ctx, "customer_already_exists")
		return errCustomerExists(customer.MobileNumber)
	case !pkgerrors.IsNotFoundError(err):
		return fmt.Errorf("failed to check existing customer: %w", err)
	}

	row := &data.Customer{
		Name:         customer.Name,
		Email:        customer.Email,
		MobileNumber: customer.MobileNumber,
	}
	account := &data.Account{
		AccountNumber: uc.newAccountNumber(),
		AccountType:   model.AccountTypeSavings,
		BranchAddress: model.BranchAddress,
	}

	if err := uc.repo.CreateCustomerWithAccount(ctx, row, account); err != nil {
		return uc.creationError(ctx, customer.MobileNumber, err)
	}

	uc.metrics.RecordAccountCreated(ctx)
	if err := uc.RefreshAccountCount(ctx); err != nil {
		uc.logger.Warnw("msg", "failed to refresh account count", "error", err)
	}
	uc.cache.Invalidate(ctx, customer.MobileNumber)

	uc.logger.Account("account created",
		"account_number", account.AccountNumber,
		"customer_id", row.ID,
		"mobile_number", row.MobileNumber,
		"duration_ms", time.Since(start).Milliseconds())

	uc.publishCreated(ctx, row, account)
	return nil
}

func (uc *AccountUsecase) creationError(ctx context.Context, mobileNumber string, err error) error {
	dbErr := pkgerrors.ClassifyDBError(err)
	uc.metrics.RecordCreationError(ctx, dbErr.Type.String())

	switch {
	case dbErr.Type == pkgerrors.ErrorTypeDuplicateKey:
		return errCustomerExists(mobileNumber)
	case dbErr.Type.IsIntegrityViolation():
		return errors.Conflict("DATA_INTEGRITY_VIOLATION", dbErr.Message)
	default:
		return fmt.Errorf("failed to create account: %w", err)
	}
}

func (uc *AccountUsecase) publishCreated(ctx context.Context, customer *data.Customer, account *data.Account) {
	key := strconv.FormatInt(account.AccountNumber, 10)

	uc.publisher.Publish(ctx, model.ChannelAccountCreated, model.EventTypeAccountCreated, key, &model.AccountCreatedEvent{
		AccountNumber: account.AccountNumber,
		CustomerName:  customer.Name,
		Email:         customer.Email,
		MobileNumber:  customer.MobileNumber,
		EventType:     model.EventTypeAccountCreated,
	})
	uc.publisher.Publish(ctx, model.ChannelSendCommunication, model.EventTypeSendCommunication, key, &model.AccountsMsg{
		AccountNumber: account.AccountNumber,
		Name:          customer.Name,
		Email:         customer.Email,
		MobileNumber:  customer.MobileNumber,
	})
}

// FetchAccount returns the customer and account registered with mobileNumber.
func (uc *AccountUsecase) FetchAccount(ctx context.Context, mobileNumber string) (*model.Customer, error) {
	customer, err := uc.findCustomer(ctx, mobileNumber)
	if err != nil {
		return nil, err
	}

	account, err := uc.repo.FindAccountByCustomerID(ctx, customer.ID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return nil, errAccountNotFound("customerId", strconv.FormatInt(customer.ID, 10))
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return customer.ToModel(account), nil
}

// UpdateAccount updates the account identified by details.Account and then
// its customer. It returns false when details carry no account.
func (uc *AccountUsecase) UpdateAccount(ctx context.Context, details *model.Customer) (bool, error) {
	if details == nil || details.Account == nil {
		return false, nil
	}

	account, err := uc.repo.FindAccountByNumber(ctx, details.Account.AccountNumber)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return false, errAccountNotFound("AccountNumber", strconv.FormatInt(details.Account.AccountNumber, 10))
		}
		return false, fmt.Errorf("failed to load account: %w", err)
	}

	customer, err := uc.repo.FindCustomerByID(ctx, account.CustomerID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return false, errCustomerNotFound("CustomerID", strconv.FormatInt(account.CustomerID, 10))
		}
		return false, fmt.Errorf("failed to load customer: %w", err)
	}

	oldMobile := customer.MobileNumber
	account.AccountType = details.Account.AccountType
	account.BranchAddress = details.Account.BranchAddress
	customer.Name = details.Name
	customer.Email = details.Email
	customer.MobileNumber = details.MobileNumber

	if err := uc.repo.UpdateCustomerAndAccount(ctx, customer, account); err != nil {
		dbErr := pkgerrors.ClassifyDBError(err)
		switch {
		case dbErr.Type == pkgerrors.ErrorTypeDuplicateKey:
			return false, errCustomerExists(details.MobileNumber)
		case dbErr.Type.IsIntegrityViolation():
			return false, errors.Conflict("DATA_INTEGRITY_VIOLATION", dbErr.Message)
		default:
			return false, fmt.Errorf("failed to update account: %w", err)
		}
	}

	uc.cache.Invalidate(ctx, oldMobile)
	if customer.MobileNumber != oldMobile {
		uc.cache.Invalidate(ctx, customer.MobileNumber)
	}

	uc.logger.Account("account updated",
		"account_number", account.AccountNumber,
		"customer_id", customer.ID)
	return true, nil
}

// DeleteAccount removes the customer registered with mobileNumber and its account.
func (uc *AccountUsecase) DeleteAccount(ctx context.Context, mobileNumber string) (bool, error) {
	customer, err := uc.findCustomer(ctx, mobileNumber)
	if err != nil {
		return false, err
	}

	if err := uc.repo.DeleteCustomer(ctx, customer.ID); err != nil {
		return false, fmt.Errorf("failed to delete account: %w", err)
	}

	uc.cache.Invalidate(ctx, mobileNumber)
	if err := uc.RefreshAccountCount(ctx); err != nil {
		uc.logger.Warnw("msg", "failed to refresh account count", "error", err)
	}

	uc.logger.Account("account deleted", "customer_id", customer.ID)
	return true, nil
}

// UpdateCommunicationStatus marks the communication of accountNumber as sent.
func (uc *AccountUsecase) UpdateCommunicationStatus(ctx context.Context, accountNumber int64) (bool, error) {
	account, err := uc.repo.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return false, errAccountNotFound("AccountNumber", strconv.FormatInt(accountNumber, 10))
		}
		return false, fmt.Errorf("failed to load account: %w", err)
	}

	if err := uc.repo.UpdateCommunicationSwitch(ctx, accountNumber, true); err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return false, errAccountNotFound("AccountNumber", strconv.FormatInt(accountNumber, 10))
		}
		return false, fmt.Errorf("failed to update communication status: %w", err)
	}

	customer, err := uc.repo.FindCustomerByID(ctx, account.CustomerID)
	if err != nil {
		uc.logger.Warnw("msg", "failed to resolve customer for cache invalidation",
			"account_number", accountNumber,
			"error", err)
	} else {
		uc.cache.Invalidate(ctx, customer.MobileNumber)
	}

	uc.logger.Account("communication status updated", "account_number", accountNumber)
	return true, nil
}

// RefreshAccountCount sets the accounts.total.count gauge from the database.
func (uc *AccountUsecase) RefreshAccountCount(ctx context.Context) error {
	count, err := uc.repo.CountAccounts(ctx)
	if err != nil {
		return err
	}
	uc.metrics.SetAccountCount(ctx, count)
	return nil
}

func (uc *AccountUsecase) findCustomer(ctx context.Context, mobileNumber string) (*data.Customer, error) {
	customer, err := uc.repo.FindCustomerByMobile(ctx, mobileNumber)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return nil, errCustomerNotFound("mobileNumber", mobileNumber)
		}
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return customer, nil
}

func errCustomerExists(mobileNumber string) error {
	return errors.BadRequest("CUSTOMER_ALREADY_EXISTS",
		fmt.Sprintf("Customer already registered with given mobileNumber %s", mobileNumber))
}

func errCustomerNotFound(field, value string) error {
	return errors.NotFound("CUSTOMER_NOT_FOUND",
		fmt.Sprintf("Customer not found with the given input data %s : '%s'", field, value))
}

func errAccountNotFound(field, value string) error {
	return errors.NotFound("ACCOUNT_NOT_FOUND",
		fmt.Sprintf("Account not found with the given input data %s : '%s'", field, value))
}
