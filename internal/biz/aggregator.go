package biz

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"
	pkgerrors "KuroAccounts/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

const defaultAggregationDeadline = 2 * time.Second

// AggregationOrchestrator builds the customer details view: local customer
// and account data, plus cards and loans fetched concurrently.
type AggregationOrchestrator struct {
	repo     CustomerRepo
	cards    *ResilientClient[*model.CardsDetails]
	loans    *ResilientClient[*model.LoansDetails]
	deadline time.Duration
	logger   *log.Helper
}

// NewAggregationOrchestrator wraps the cards and loans clients in resilient
// clients configured from c. Both fall back to a nil payload.
func NewAggregationOrchestrator(
	c *conf.Downstream,
	repo CustomerRepo,
	cards CardsFetcher,
	loans LoansFetcher,
	breakers *CircuitBreakerRegistry,
	metrics *Metrics,
	logger log.Logger,
) *AggregationOrchestrator {
	var cardsConf, loansConf *conf.Dependency
	deadline := defaultAggregationDeadline
	if c != nil {
		cardsConf, loansConf = c.Cards, c.Loans
		if c.AggregationDeadline > 0 {
			deadline = c.AggregationDeadline
		}
	}

	cardsOpts := ResilientClientOptionsFrom[*model.CardsDetails](data.DependencyCards, cardsConf)
	cardsOpts.Invoke = func(ctx context.Context, req DownstreamRequest) (*model.CardsDetails, error) {
		return cards.FetchCards(ctx, req.CorrelationID, req.MobileNumber)
	}
	cardsOpts.Fallback = func() *model.CardsDetails { return nil }

	loansOpts := ResilientClientOptionsFrom[*model.LoansDetails](data.DependencyLoans, loansConf)
	loansOpts.Invoke = func(ctx context.Context, req DownstreamRequest) (*model.LoansDetails, error) {
		return loans.FetchLoans(ctx, req.CorrelationID, req.MobileNumber)
	}
	loansOpts.Fallback = func() *model.LoansDetails { return nil }

	return &AggregationOrchestrator{
		repo:     repo,
		cards:    NewResilientClient(cardsOpts, breakers, metrics, logger),
		loans:    NewResilientClient(loansOpts, breakers, metrics, logger),
		deadline: deadline,
		logger:   log.NewHelper(logger),
	}
}

// Aggregate returns the customer details of mobileNumber. A missing customer
// or account is a NotFound error. Cards and loans are optional: whatever is
// unavailable or still pending at the aggregation deadline is left nil, and
// the late calls are abandoned.
func (o *AggregationOrchestrator) Aggregate(ctx context.Context, mobileNumber, correlationID string) (*model.CustomerDetails, error) {
	customer, err := o.repo.FindCustomerByMobile(ctx, mobileNumber)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return nil, errCustomerNotFound("mobileNumber", mobileNumber)
		}
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	account, err := o.repo.FindAccountByCustomerID(ctx, customer.ID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return nil, errAccountNotFound("customerId", strconv.FormatInt(customer.ID, 10))
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	view := &model.CustomerDetails{
		Name:         customer.Name,
		Email:        customer.Email,
		MobileNumber: customer.MobileNumber,
		Account:      account.ToModel(),
	}

	joinCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	cardsCh := make(chan DownstreamResult[*model.CardsDetails], 1)
	loansCh := make(chan DownstreamResult[*model.LoansDetails], 1)

	go func(out chan<- DownstreamResult[*model.CardsDetails]) {
		out <- o.cards.Call(joinCtx, DownstreamRequest{
			CorrelationID: correlationID,
			MobileNumber:  mobileNumber,
			Dependency:    data.DependencyCards,
		})
	}(cardsCh)
	go func(out chan<- DownstreamResult[*model.LoansDetails]) {
		out <- o.loans.Call(joinCtx, DownstreamRequest{
			CorrelationID: correlationID,
			MobileNumber:  mobileNumber,
			Dependency:    data.DependencyLoans,
		})
	}(loansCh)

	for pending := 2; pending > 0; pending-- {
		select {
		case r := <-cardsCh:
			if r.Outcome == OutcomeSuccess {
				view.Cards = r.Payload
			}
			cardsCh = nil
		case r := <-loansCh:
			if r.Outcome == OutcomeSuccess {
				view.Loans = r.Payload
			}
			loansCh = nil
		case <-joinCtx.Done():
			o.logger.Warnw("msg", "aggregation deadline reached, using fallbacks",
				"correlation_id", correlationID,
				"deadline", o.deadline.String(),
				"cards_pending", cardsCh != nil,
				"loans_pending", loansCh != nil)
			return view, nil
		}
	}

	return view, nil
}
