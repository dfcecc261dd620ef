package biz

import (
	"context"

	"KuroAccounts/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// CustomerUsecase serves the aggregated customer details view.
type CustomerUsecase struct {
	cache        *ResultCache[*model.CustomerDetails]
	orchestrator *AggregationOrchestrator
	breakers     *CircuitBreakerRegistry
	logger       *log.Helper
}

// NewCustomerUsecase creates a new customer usecase.
func NewCustomerUsecase(cache *ResultCache[*model.CustomerDetails], orchestrator *AggregationOrchestrator, breakers *CircuitBreakerRegistry, logger log.Logger) *CustomerUsecase {
	return &CustomerUsecase{
		cache:        cache,
		orchestrator: orchestrator,
		breakers:     breakers,
		logger:       log.NewHelper(logger),
	}
}

// FetchCustomerDetails returns the cached view of mobileNumber, building it
// on a miss. Views are cached even when cards or loans fell back; errors
// are not.
func (uc *CustomerUsecase) FetchCustomerDetails(ctx context.Context, mobileNumber, correlationID string) (*model.CustomerDetails, error) {
	return uc.cache.GetOrCompute(ctx, mobileNumber, func(ctx context.Context) (*model.CustomerDetails, error) {
		uc.logger.Debugw("msg", "customer details cache miss",
			"correlation_id", correlationID,
			"mobile_number", mobileNumber)
		return uc.orchestrator.Aggregate(ctx, mobileNumber, correlationID)
	})
}

// CircuitStates returns the state of every downstream breaker.
func (uc *CustomerUsecase) CircuitStates() []*model.CircuitState {
	return uc.breakers.Snapshot()
}

// CacheStats returns the customer details cache counters.
func (uc *CustomerUsecase) CacheStats() CacheStats {
	return uc.cache.Stats()
}
