package meroShareModel

import "github.com/shopspring/decimal"

type Capital struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type LoginRequest struct {
	ClientID int    `json:"clientId"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type FilterFieldParam struct {
	Key   string `json:"key"`
	Alias string `json:"alias,omitempty"`
}

type FilterDateParam struct {
	Key       string `json:"key"`
	Condition string `json:"condition,omitempty"`
	Alias     string `json:"alias,omitempty"`
	Value     string `json:"value"`
}

type SearchRequest struct {
	FilterFieldParams       []FilterFieldParam `json:"filterFieldParams"`
	Page                    int                `json:"page"`
	Size                    int                `json:"size"`
	SearchRoleViewConstants string             `json:"searchRoleViewConstants"`
	FilterDateParams        []FilterDateParam  `json:"filterDateParams"`
}

type IssueSearchResponse struct {
	Object     []Issue `json:"object"`
	TotalCount int     `json:"totalCount"`
}

type Issue struct {
	CompanyShareID int    `json:"companyShareId"`
	CompanyName    string `json:"companyName"`
	Scrip          string `json:"scrip"`
	ShareGroupName string `json:"shareGroupName"`
	ShareTypeName  string `json:"shareTypeName"`
	SubGroup       string `json:"subGroup"`
	StatusName     string `json:"statusName"`
	IssueOpenDate  string `json:"issueOpenDate"`
	IssueCloseDate string `json:"issueCloseDate"`
}

// BODetail carries only the fields the application flow reads; the remote
// endpoint returns a much wider object.
type BODetail struct {
	Boid          string `json:"boid"`
	Name          string `json:"name"`
	BankCode      string `json:"bankCode"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
}

type BankRequest struct {
	Bank Bank `json:"bank"`
}

type Bank struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type BankAccount struct {
	ID              int    `json:"id"`
	AccountBranchID int    `json:"accountBranchId"`
	AccountNumber   string `json:"accountNumber"`
	BranchName      string `json:"branchName"`
}

type ApplyRequest struct {
	AccountBranchID int    `json:"accountBranchId"`
	AccountNumber   string `json:"accountNumber"`
	AccountTypeID   int    `json:"accountTypeId"`
	AppliedKitta    string `json:"appliedKitta"`
	BankID          string `json:"bankId"`
	Boid            string `json:"boid"`
	CompanyShareID  string `json:"companyShareId"`
	CrnNumber       string `json:"crnNumber"`
	CustomerID      int    `json:"customerId"`
	Demat           string `json:"demat"`
	TransactionPIN  string `json:"transactionPIN"`
}

type ApplyResponse struct {
	Message     string `json:"message"`
	Status      string `json:"status"`
	ReferenceNo string `json:"referenceNo"`
}

type ReportSearchResponse struct {
	Object     []ApplicationReport `json:"object"`
	TotalCount int                 `json:"totalCount"`
}

type ApplicationReport struct {
	ApplicantFormID int64           `json:"applicantFormId"`
	CompanyShareID  int             `json:"companyShareId"`
	CompanyName     string          `json:"companyName"`
	Scrip           string          `json:"scrip"`
	ShareGroupName  string          `json:"shareGroupName"`
	ShareTypeName   string          `json:"shareTypeName"`
	AppliedKitta    int             `json:"appliedKitta"`
	Amount          decimal.Decimal `json:"amount"`
	StatusName      string          `json:"statusName"`
}

type ApplicationDetail struct {
	ApplicantFormID int64           `json:"applicantFormId"`
	CompanyName     string          `json:"companyName"`
	Scrip           string          `json:"scrip"`
	AppliedKitta    int             `json:"appliedKitta"`
	ReceivedKitta   int             `json:"receivedKitta"`
	Amount          decimal.Decimal `json:"amount"`
	StatusName      string          `json:"statusName"`
	StageName       string          `json:"stageName"`
	Remark          string          `json:"remark"`
	AppliedDate     string          `json:"appliedDate"`
}
