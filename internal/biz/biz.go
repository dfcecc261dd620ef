// Package biz contains business logic layer implementations.
// This layer holds the core business rules: resilient downstream calls,
// aggregation, result caching and event publishing.
package biz

import (
	"KuroAccounts/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewMetrics,
	NewCircuitBreakerRegistry,
	NewCustomerDetailsCache,
	NewEventPublisher,
	NewAggregationOrchestrator,
	NewAccountUsecase,
	NewCustomerUsecase,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(CustomerRepo), new(*data.CustomerRepo)),
	wire.Bind(new(CircuitStateRepo), new(*data.CircuitStateRepo)),
	wire.Bind(new(DeliveryLogger), new(*data.DeliveryLogRepo)),
	wire.Bind(new(CardsFetcher), new(*data.CardsClient)),
	wire.Bind(new(LoansFetcher), new(*data.LoansClient)),
)
