package model

// Account type and branch assigned to every new account.
const (
	AccountTypeSavings = "Savings"
	BranchAddress      = "123 Main Street, New York"
)

// Customer is the customer half of an account record.
type Customer struct {
	Name         string          `json:"name" validate:"required,min=5,max=30"`
	Email        string          `json:"email" validate:"required,email"`
	MobileNumber string          `json:"mobileNumber" validate:"required,len=10,numeric"`
	Account      *AccountDetails `json:"accountsDto,omitempty"`
}

// AccountDetails is the locally owned account data.
type AccountDetails struct {
	AccountNumber       int64  `json:"accountNumber" validate:"gte=1000000000,lte=9999999999"`
	AccountType         string `json:"accountType" validate:"required"`
	BranchAddress       string `json:"branchAddress" validate:"required"`
	CommunicationSwitch bool   `json:"communicationSw"`
}

// CardsDetails is the payload returned by the cards service.
type CardsDetails struct {
	MobileNumber    string `json:"mobileNumber"`
	CardNumber      string `json:"cardNumber"`
	CardType        string `json:"cardType"`
	TotalLimit      int64  `json:"totalLimit"`
	AmountUsed      int64  `json:"amountUsed"`
	AvailableAmount int64  `json:"availableAmount"`
}

// LoansDetails is the payload returned by the loans service.
type LoansDetails struct {
	MobileNumber      string `json:"mobileNumber"`
	LoanNumber        string `json:"loanNumber"`
	LoanType          string `json:"loanType"`
	TotalLoan         int64  `json:"totalLoan"`
	AmountPaid        int64  `json:"amountPaid"`
	OutstandingAmount int64  `json:"outstandingAmount"`
}

// CustomerDetails is the aggregated customer view. A nil Cards or Loans means
// that dependency was unavailable and its fallback was applied.
type CustomerDetails struct {
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	MobileNumber string          `json:"mobileNumber"`
	Account      *AccountDetails `json:"accountsDto"`
	Cards        *CardsDetails   `json:"cardsDto"`
	Loans        *LoansDetails   `json:"loansDto"`
}
