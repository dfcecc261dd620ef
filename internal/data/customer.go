package data

import (
	"context"
	"time"

	"KuroAccounts/internal/model"
	pkgerrors "KuroAccounts/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// Customer is the GORM model for the customers table.
type Customer struct {
	ID           int64     `gorm:"primaryKey;column:customer_id"`
	Name         string    `gorm:"column:name;size:100;not null"`
	Email        string    `gorm:"column:email;size:100;not null"`
	MobileNumber string    `gorm:"column:mobile_number;size:20;not null;uniqueIndex"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Customer) TableName() string {
	return "customers"
}

// Account is the GORM model for the accounts table. Account numbers are
// assigned by the service, not by the database.
type Account struct {
	AccountNumber   int64     `gorm:"primaryKey;autoIncrement:false;column:account_number"`
	CustomerID      int64     `gorm:"column:customer_id;not null;index"`
	AccountType     string    `gorm:"column:account_type;size:100;not null"`
	BranchAddress   string    `gorm:"column:branch_address;size:200;not null"`
	CommunicationSw bool      `gorm:"column:communication_sw;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Account) TableName() string {
	return "accounts"
}

// ToModel converts the GORM account to its API representation.
func (a *Account) ToModel() *model.AccountDetails {
	if a == nil {
		return nil
	}
	return &model.AccountDetails{
		AccountNumber:       a.AccountNumber,
		AccountType:         a.AccountType,
		BranchAddress:       a.BranchAddress,
		CommunicationSwitch: a.CommunicationSw,
	}
}

// ToModel converts the GORM customer and its account to the API representation.
func (c *Customer) ToModel(account *Account) *model.Customer {
	return &model.Customer{
		Name:         c.Name,
		Email:        c.Email,
		MobileNumber: c.MobileNumber,
		Account:      account.ToModel(),
	}
}

// CustomerRepo implements biz.CustomerRepo. Errors are returned as
// classified *errors.DatabaseError values.
type CustomerRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewCustomerRepo creates a new customer repository.
func NewCustomerRepo(db *gorm.DB, logger log.Logger) *CustomerRepo {
	return &CustomerRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// FindCustomerByMobile returns the customer registered with mobileNumber.
func (r *CustomerRepo) FindCustomerByMobile(ctx context.Context, mobileNumber string) (*Customer, error) {
	var customer Customer
	if err := r.db.WithContext(ctx).Where("mobile_number = ?", mobileNumber).First(&customer).Error; err != nil {
		return nil, pkgerrors.ClassifyDBError(err)
	}
	return &customer, nil
}

// FindCustomerByID returns the customer with the given id.
func (r *CustomerRepo) FindCustomerByID(ctx context.Context, customerID int64) (*Customer, error) {
	var customer Customer
	if err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&customer).Error; err != nil {
		return nil, pkgerrors.ClassifyDBError(err)
	}
	return &customer, nil
}

// FindAccountByCustomerID returns the account owned by customerID.
func (r *CustomerRepo) FindAccountByCustomerID(ctx context.Context, customerID int64) (*Account, error) {
	var account Account
	if err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&account).Error; err != nil {
		return nil, pkgerrors.ClassifyDBError(err)
	}
	return &account, nil
}

// FindAccountByNumber returns the account with the given number.
func (r *CustomerRepo) FindAccountByNumber(ctx context.Context, accountNumber int64) (*Account, error) {
	var account Account
	if err := r.db.WithContext(ctx).Where("account_number = ?", accountNumber).First(&account).Error; err != nil {
		return nil, pkgerrors.ClassifyDBError(err)
	}
	return &account, nil
}

// CreateCustomerWithAccount stores the customer and its account in one
// transaction and links the account to the generated customer id.
func (r *CustomerRepo) CreateCustomerWithAccount(ctx context.Context, customer *Customer, account *Account) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(customer).Error; err != nil {
			return err
		}
		account.CustomerID = customer.ID
		return tx.Create(account).Error
	})
	if err != nil {
		dbErr := pkgerrors.ClassifyDBError(err)
		switch dbErr.Type {
		case pkgerrors.ErrorTypeDuplicateKey:
			r.logger.Warnw("msg", "duplicate customer or account",
				"mobile_number", customer.MobileNumber,
				"account_number", account.AccountNumber,
				"error", dbErr.Error())
		case pkgerrors.ErrorTypeConnectionError:
			r.logger.Errorw("msg", "database connection error", "error", dbErr.Error())
		default:
			r.logger.Errorw("msg", "failed to create customer",
				"mobile_number", customer.MobileNumber,
				"error", dbErr.Error())
		}
		return dbErr
	}

	r.logger.Infow("msg", "customer created",
		"customer_id", customer.ID,
		"account_number", account.AccountNumber,
		"mobile_number", customer.MobileNumber)
	return nil
}

// UpdateCustomerAndAccount writes the mutable account and customer columns
// in one transaction.
func (r *CustomerRepo) UpdateCustomerAndAccount(ctx context.Context, customer *Customer, account *Account) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Account{}).
			Where("account_number = ?", account.AccountNumber).
			Updates(map[string]interface{}{
				"account_type":   account.AccountType,
				"branch_address": account.BranchAddress,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&Customer{}).
			Where("customer_id = ?", customer.ID).
			Updates(map[string]interface{}{
				"name":          customer.Name,
				"email":         customer.Email,
				"mobile_number": customer.MobileNumber,
			}).Error
	})
	if err != nil {
		return pkgerrors.ClassifyDBError(err)
	}
	return nil
}

// DeleteCustomer removes the customer and its accounts.
func (r *CustomerRepo) DeleteCustomer(ctx context.Context, customerID int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("customer_id = ?", customerID).Delete(&Account{}).Error; err != nil {
			return err
		}
		return tx.Where("customer_id = ?", customerID).Delete(&Customer{}).Error
	})
	if err != nil {
		return pkgerrors.ClassifyDBError(err)
	}
	r.logger.Infow("msg", "customer deleted", "customer_id", customerID)
	return nil
}

// UpdateCommunicationSwitch sets communication_sw on an account. A missing
// account is reported as a not-found error.
func (r *CustomerRepo) UpdateCommunicationSwitch(ctx context.Context, accountNumber int64, on bool) error {
	result := r.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_number = ?", accountNumber).
		Update("communication_sw", on)
	if result.Error != nil {
		return pkgerrors.ClassifyDBError(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ClassifyDBError(gorm.ErrRecordNotFound)
	}
	return nil
}

// CountAccounts returns the number of stored accounts.
func (r *CustomerRepo) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Account{}).Count(&count).Error; err != nil {
		return 0, pkgerrors.ClassifyDBError(err)
	}
	return count, nil
}
