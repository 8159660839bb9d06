package model

import "github.com/shopspring/decimal"

type ApplicationParams struct {
	TargetScrip  string
	Boid         string
	CrnNumber    string
	AppliedKitta string
	Pin          string
}

type ApplicationResult struct {
	Scrip       string
	CompanyName string
	ReferenceNo string
}

type ApplicationStatusRow struct {
	ApplicantFormID int64
	Scrip           string
	CompanyName     string
	AppliedKitta    int
	ReceivedKitta   int
	Amount          decimal.Decimal
	StatusName      string
	StageName       string
	Remark          string
}
