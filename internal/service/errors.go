package service

import "errors"

var (
	ErrIssueNotFound = errors.New("error issue not found")
	ErrNoBankAccount = errors.New("error no linked bank account")
)
