package ipoService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nepsetools/meroshare_apply_bot/config"
	"github.com/nepsetools/meroshare_apply_bot/internal/externalApi"
	"github.com/nepsetools/meroshare_apply_bot/internal/model"
	"github.com/nepsetools/meroshare_apply_bot/internal/model/meroShareModel"
	"github.com/nepsetools/meroshare_apply_bot/internal/service"
	"github.com/nepsetools/meroshare_apply_bot/utils"
)

const defaultAppliedKitta = "10"

type MeroShareApi interface {
	FetchApplicableIssues(ctx context.Context) ([]meroShareModel.Issue, error)
	FetchBODetail(ctx context.Context, boid string) (meroShareModel.BODetail, error)
	FetchBankRequest(ctx context.Context, bankCode string) (int, error)
	FetchBankAccount(ctx context.Context, bankID int) (meroShareModel.BankAccount, error)
	Apply(ctx context.Context, payload meroShareModel.ApplyRequest) (meroShareModel.ApplyResponse, error)
	FetchApplicationReports(ctx context.Context) ([]meroShareModel.ApplicationReport, error)
	FetchApplicationDetail(ctx context.Context, applicantFormID int64) (meroShareModel.ApplicationDetail, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, rows []model.ApplicationStatusRow) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

type IpoService struct {
	cfg             *config.Config
	meroShareApi    MeroShareApi
	reportGenerator ReportGenerator
	cloudStorage    CloudStorage
}

func New(cfg *config.Config, meroShareApi MeroShareApi, reportGenerator ReportGenerator, cloudStorage CloudStorage) *IpoService {
	return &IpoService{
		cfg:             cfg,
		meroShareApi:    meroShareApi,
		reportGenerator: reportGenerator,
		cloudStorage:    cloudStorage,
	}
}

// ApplyForIssue runs the full application chain: locate the issue, resolve
// the beneficiary owner and their linked bank account, then submit. Any
// failed lookup aborts before a submission request is issued.
func (s *IpoService) ApplyForIssue(ctx context.Context, params model.ApplicationParams) (model.ApplicationResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "IpoService.ApplyForIssue"

	slog.Debug("ApplyForIssue start", slog.String("rqID", rqID), slog.String("op", op), slog.String("targetScrip", params.TargetScrip))
	defer func() {
		slog.Debug("ApplyForIssue finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("targetScrip", params.TargetScrip))
	}()

	issues, err := s.meroShareApi.FetchApplicableIssues(ctx)
	if err != nil {
		slog.Error("got error from meroShareApi.FetchApplicableIssues", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ApplicationResult{}, err
	}

	issue, err := findIssueByScrip(issues, params.TargetScrip)
	if err != nil {
		slog.Error("target issue not applicable", slog.String("rqID", rqID), slog.String("op", op), slog.String("targetScrip", params.TargetScrip))
		return model.ApplicationResult{}, err
	}

	slog.Info("target issue found", slog.String("rqID", rqID), slog.String("scrip", issue.Scrip), slog.String("companyName", issue.CompanyName))

	boDetail, err := s.meroShareApi.FetchBODetail(ctx, params.Boid)
	if err != nil {
		slog.Error("got error from meroShareApi.FetchBODetail", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ApplicationResult{}, err
	}

	bankID, err := s.meroShareApi.FetchBankRequest(ctx, boDetail.BankCode)
	if err != nil {
		slog.Error("got error from meroShareApi.FetchBankRequest", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ApplicationResult{}, err
	}

	account, err := s.meroShareApi.FetchBankAccount(ctx, bankID)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			slog.Error("no bank account linked to BOID", slog.String("rqID", rqID), slog.String("op", op), slog.String("boid", params.Boid))
			return model.ApplicationResult{}, service.ErrNoBankAccount
		}
		slog.Error("got error from meroShareApi.FetchBankAccount", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ApplicationResult{}, err
	}

	kitta := params.AppliedKitta
	if kitta == "" {
		kitta = defaultAppliedKitta
	}

	// Field semantics the remote API insists on: boid carries the login
	// username, demat carries the BO detail's boid, and the account number
	// comes from the bank account lookup, not from the BO detail.
	payload := meroShareModel.ApplyRequest{
		AccountBranchID: account.AccountBranchID,
		AccountNumber:   account.AccountNumber,
		AccountTypeID:   1,
		AppliedKitta:    kitta,
		BankID:          strconv.Itoa(bankID),
		Boid:            s.cfg.MeroShare.Username,
		CompanyShareID:  strconv.Itoa(issue.CompanyShareID),
		CrnNumber:       params.CrnNumber,
		CustomerID:      account.ID,
		Demat:           boDetail.Boid,
		TransactionPIN:  params.Pin,
	}

	applyResp, err := s.meroShareApi.Apply(ctx, payload)
	if err != nil {
		slog.Error("got error from meroShareApi.Apply", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ApplicationResult{}, err
	}

	slog.Info(
		"application submitted",
		slog.String("rqID", rqID),
		slog.String("scrip", issue.Scrip),
		slog.String("referenceNo", applyResp.ReferenceNo),
	)

	return model.ApplicationResult{
		Scrip:       issue.Scrip,
		CompanyName: issue.CompanyName,
		ReferenceNo: applyResp.ReferenceNo,
	}, nil
}

// ApplicationStatuses joins the report rows with their per-form detail.
func (s *IpoService) ApplicationStatuses(ctx context.Context) ([]model.ApplicationStatusRow, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "IpoService.ApplicationStatuses"

	slog.Debug("ApplicationStatuses start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("ApplicationStatuses finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	reports, err := s.meroShareApi.FetchApplicationReports(ctx)
	if err != nil {
		slog.Error("got error from meroShareApi.FetchApplicationReports", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	rows := make([]model.ApplicationStatusRow, 0, len(reports))
	for _, report := range reports {
		detail, err := s.meroShareApi.FetchApplicationDetail(ctx, report.ApplicantFormID)
		if err != nil {
			slog.Error("got error from meroShareApi.FetchApplicationDetail", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("applicantFormID", report.ApplicantFormID), slog.String("err", err.Error()))
			return nil, err
		}

		rows = append(rows, model.ApplicationStatusRow{
			ApplicantFormID: report.ApplicantFormID,
			Scrip:           report.Scrip,
			CompanyName:     report.CompanyName,
			AppliedKitta:    report.AppliedKitta,
			ReceivedKitta:   detail.ReceivedKitta,
			Amount:          detail.Amount,
			StatusName:      detail.StatusName,
			StageName:       detail.StageName,
			Remark:          detail.Remark,
		})
	}

	return rows, nil
}

// ApplicationStatus returns the detail for a single applicant form.
func (s *IpoService) ApplicationStatus(ctx context.Context, applicantFormID int64) (meroShareModel.ApplicationDetail, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "IpoService.ApplicationStatus"

	slog.Debug("ApplicationStatus start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("applicantFormID", applicantFormID))

	detail, err := s.meroShareApi.FetchApplicationDetail(ctx, applicantFormID)
	if err != nil {
		slog.Error("got error from meroShareApi.FetchApplicationDetail", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return meroShareModel.ApplicationDetail{}, err
	}

	return detail, nil
}

// ReportStatuses logs every known application with its current status and
// exports the table. Used both as the one-shot report mode and as the
// scheduled polling job.
func (s *IpoService) ReportStatuses(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "IpoService.ReportStatuses"

	slog.Debug("ReportStatuses start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("ReportStatuses finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	rows, err := s.ApplicationStatuses(ctx)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		slog.Info("no applications found", slog.String("rqID", rqID))
		return nil
	}

	for _, row := range rows {
		slog.Info(
			"application status",
			slog.String("rqID", rqID),
			slog.String("scrip", row.Scrip),
			slog.String("companyName", row.CompanyName),
			slog.Int("appliedKitta", row.AppliedKitta),
			slog.Int("receivedKitta", row.ReceivedKitta),
			slog.String("statusName", row.StatusName),
			slog.String("stageName", row.StageName),
			slog.String("remark", row.Remark),
		)
	}

	location, err := s.ExportReports(ctx, rows)
	if err != nil {
		return err
	}

	slog.Info("application report exported", slog.String("rqID", rqID), slog.String("location", location))

	return nil
}

// ExportReports renders the status rows to an xlsx workbook. The file is
// uploaded to cloud storage when configured, otherwise written next to the
// binary; the returned string is the link or local path.
func (s *IpoService) ExportReports(ctx context.Context, rows []model.ApplicationStatusRow) (string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "IpoService.ExportReports"

	slog.Debug("ExportReports start", slog.String("rqID", rqID), slog.String("op", op))

	fileBytes, ext, err := s.reportGenerator.Generate(ctx, rows)
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	filename := fmt.Sprintf("ipo_applications_%s%s", time.Now().Format("2006-01-02_150405"), ext)

	if s.cloudStorage != nil {
		link, err := s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
		if err != nil {
			slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return "", err
		}
		return link, nil
	}

	if err := os.WriteFile(filename, fileBytes, 0o644); err != nil {
		slog.Error("can't write report file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	return filename, nil
}

func findIssueByScrip(issues []meroShareModel.Issue, targetScrip string) (meroShareModel.Issue, error) {
	for _, issue := range issues {
		if strings.EqualFold(issue.Scrip, targetScrip) {
			return issue, nil
		}
	}
	return meroShareModel.Issue{}, service.ErrIssueNotFound
}
