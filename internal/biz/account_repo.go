package biz

import (
	"context"

	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"
)

// CustomerRepo defines the customer and account repository interface.
// Following Kratos v2 DDD architecture, interfaces are defined in biz layer.
// Implementation is in data layer (data.CustomerRepo).
type CustomerRepo interface {
	FindCustomerByMobile(ctx context.Context, mobileNumber string) (*data.Customer, error)
	FindCustomerByID(ctx context.Context, customerID int64) (*data.Customer, error)
	FindAccountByCustomerID(ctx context.Context, customerID int64) (*data.Account, error)
	FindAccountByNumber(ctx context.Context, accountNumber int64) (*data.Account, error)
	CreateCustomerWithAccount(ctx context.Context, customer *data.Customer, account *data.Account) error
	UpdateCustomerAndAccount(ctx context.Context, customer *data.Customer, account *data.Account) error
	DeleteCustomer(ctx context.Context, customerID int64) error
	UpdateCommunicationSwitch(ctx context.Context, accountNumber int64, on bool) error
	CountAccounts(ctx context.Context) (int64, error)
}

// CircuitStateRepo mirrors breaker transitions (data.CircuitStateRepo).
type CircuitStateRepo interface {
	SaveState(ctx context.Context, state *model.CircuitState) error
}

// DeliveryLogger records the terminal outcome of every event (data.DeliveryLogRepo).
type DeliveryLogger interface {
	Record(ctx context.Context, event *model.DomainEvent, published bool, attempts int, err error)
}

// CardsFetcher reads the cards of a customer (data.CardsClient).
type CardsFetcher interface {
	FetchCards(ctx context.Context, correlationID, mobileNumber string) (*model.CardsDetails, error)
}

// LoansFetcher reads the loans of a customer (data.LoansClient).
type LoansFetcher interface {
	FetchLoans(ctx context.Context, correlationID, mobileNumber string) (*model.LoansDetails, error)
}
