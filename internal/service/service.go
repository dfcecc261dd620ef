// Package service exposes the account and customer usecases over HTTP.
package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewValidator, NewAccountService, NewCustomerService)

// Response status codes and messages.
const (
	Status201        = "201"
	Message201       = "Account created successfully"
	Status200        = "200"
	Message200       = "Request processed successfully"
	Status417        = "417"
	Message417Update = "Update operation failed. Please try again or contact Dev team"
	Message417Delete = "Delete operation failed. Please try again or contact Dev team"
)

// ResponseDto is the body of mutating requests.
type ResponseDto struct {
	StatusCode string `json:"statusCode"`
	StatusMsg  string `json:"statusMsg"`
}

// NewValidator returns the request validator shared by the services.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func validate(v *validator.Validate, req interface{}) error {
	if err := v.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return kerrors.BadRequest("INVALID_ARGUMENT", strings.Join(msgs, "; "))
		}
		return kerrors.BadRequest("INVALID_ARGUMENT", err.Error())
	}
	return nil
}

func validateMobileNumber(v *validator.Validate, mobileNumber string) error {
	if err := v.Var(mobileNumber, "required,len=10,numeric"); err != nil {
		return kerrors.BadRequest("INVALID_ARGUMENT", "Mobile number must be 10 digits")
	}
	return nil
}

func parseAccountNumber(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, kerrors.BadRequest("INVALID_ARGUMENT", fmt.Sprintf("invalid account number %q", raw))
	}
	return n, nil
}

func expectationFailed(message string) error {
	return kerrors.New(417, "EXPECTATION_FAILED", message)
}

func logRejected(logger *log.Helper, operation string, err error) {
	logger.Warnw("msg", "request rejected", "operation", operation, "error", err)
}
