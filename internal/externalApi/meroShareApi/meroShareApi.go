package meroShareApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/nepsetools/meroshare_apply_bot/config"
	"github.com/nepsetools/meroshare_apply_bot/internal/externalApi"
	"github.com/nepsetools/meroshare_apply_bot/internal/model/meroShareModel"
	"github.com/nepsetools/meroshare_apply_bot/utils"
)

// The remote service rejects requests without the web frontend's
// Origin/Referer pair, including unauthenticated ones.
const (
	headerOrigin  = "https://meroshare.cdsc.com.np"
	headerReferer = "https://meroshare.cdsc.com.np/"
)

const (
	capitalPath         = "/meroShare/capital/"
	authPath            = "/meroShare/auth/"
	applicableIssuePath = "/meroShare/companyShare/applicableIssue/"
	boDetailPath        = "/meroShareView/myDetail/%s"
	bankRequestPath     = "/bankRequest/%s"
	bankAccountPath     = "/meroShare/bank/%d"
	applyPath           = "/meroShare/applicantForm/share/apply"
	reportSearchPath    = "/meroShare/applicantForm/active/search/"
	reportDetailPath    = "/meroShare/applicantForm/report/detail/%d"
)

type MeroShareApi struct {
	client   *resty.Client
	username string
	password string
	dpID     string

	// bearer token from the last successful login; mutated only by Login.
	token string
}

func New(cfg *config.Config) *MeroShareApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.MeroShareApi.Url)
	return &MeroShareApi{
		client:   client,
		username: cfg.MeroShare.Username,
		password: cfg.MeroShare.Password,
		dpID:     cfg.MeroShare.DpID,
	}
}

func (a *MeroShareApi) newRequest(ctx context.Context) *resty.Request {
	return a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Origin", headerOrigin).
		SetHeader("Referer", headerReferer)
}

// ResolveClientID maps a broker (DP) code to the numeric identifier the
// auth endpoint expects. The directory is public.
func (a *MeroShareApi) ResolveClientID(ctx context.Context, brokerCode string) (int, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MeroShareApi.ResolveClientID"

	slog.Debug("ResolveClientID start", slog.String("rqID", rqID), slog.String("op", op), slog.String("brokerCode", brokerCode))

	resp, err := a.newRequest(ctx).Get(capitalPath)
	if err != nil {
		slog.Error("error while dialing MeroShareApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	if !resp.IsSuccess() {
		slog.Error("capital directory request failed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return 0, fmt.Errorf("capital directory request failed with status %d", resp.StatusCode())
	}

	capitals := make([]meroShareModel.Capital, 0)
	if err = json.Unmarshal(resp.Body(), &capitals); err != nil {
		slog.Error("can't unmarshall response into []meroShareModel.Capital", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	for _, capital := range capitals {
		if capital.Code == brokerCode {
			slog.Debug("ResolveClientID completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("clientID", capital.ID))
			return capital.ID, nil
		}
	}

	slog.Error("broker code not present in capital directory", slog.String("rqID", rqID), slog.String("op", op), slog.String("brokerCode", brokerCode))
	return 0, fmt.Errorf("broker code %q: %w", brokerCode, externalApi.ErrNotFound)
}

// Login resolves the broker code and authenticates. The bearer token comes
// back in the response Authorization header, not the body.
func (a *MeroShareApi) Login(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MeroShareApi.Login"

	slog.Debug("Login start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", a.username))

	clientID, err := a.ResolveClientID(ctx, a.dpID)
	if err != nil {
		return err
	}

	resp, err := a.newRequest(ctx).
		SetBody(meroShareModel.LoginRequest{ClientID: clientID, Username: a.username, Password: a.password}).
		Post(authPath)
	if err != nil {
		slog.Error("error while dialing MeroShareApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if !resp.IsSuccess() {
		slog.Error("login request failed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return &AuthError{StatusCode: resp.StatusCode(), Message: serverMessage(resp.Body())}
	}

	token := resp.Header().Get("Authorization")
	if token == "" {
		slog.Error("no authorization token in login response", slog.String("rqID", rqID), slog.String("op", op))
		return &AuthError{StatusCode: resp.StatusCode(), Message: "no authorization token in login response"}
	}

	a.token = token

	slog.Debug("Login completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", a.username))

	return nil
}

// authRequest issues an authenticated request, logging in lazily when no
// token is held. A 401 triggers exactly one re-login and one retry; a
// second 401 is surfaced as AuthError so expiry can never loop.
func (a *MeroShareApi) authRequest(ctx context.Context, send func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MeroShareApi.authRequest"

	if a.token == "" {
		slog.Debug("no token held, logging in", slog.String("rqID", rqID), slog.String("op", op))
		if err := a.Login(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := send(a.newRequest(ctx).SetHeader("Authorization", a.token))
	if err != nil {
		slog.Error("error while dialing MeroShareApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	if resp.StatusCode() != http.StatusUnauthorized {
		return resp, nil
	}

	slog.Warn("token expired, re-logging in", slog.String("rqID", rqID), slog.String("op", op))

	if err := a.Login(ctx); err != nil {
		return nil, err
	}

	resp, err = send(a.newRequest(ctx).SetHeader("Authorization", a.token))
	if err != nil {
		slog.Error("error while dialing MeroShareApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		slog.Error("still unauthorized after re-login", slog.String("rqID", rqID), slog.String("op", op))
		return nil, &AuthError{StatusCode: resp.StatusCode(), Message: "still unauthorized after re-login"}
	}

	return resp, nil
}

// FetchApplicableIssues returns the currently open issues. An empty or
// missing object field means no open issues, not an error.
func (a *MeroShareApi) FetchApplicableIssues(ctx context.Context) ([]meroShareModel.Issue, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MeroShareApi.FetchApplicableIssues"

	slog.Debug("FetchApplicableIssues start", slog.String("rqID", rqID), slog.String("op", op))

	body := meroShareModel.SearchRequest{
		FilterFieldParams: []meroShareModel.FilterFieldParam{
			{Key: "companyIssue.companyISIN.script", Alias: "Scrip"},
			{Key: "companyIssue.companyISIN.company.name", Alias: "Company Name"},
		},
		Page:                    1,
		Size:                    10,
		SearchRoleViewConstants: "VIEW_APPLICABLE_SHARE",
		FilterDateParams: []meroShareModel.FilterDateParam{
			{Key: "minIssueOpenDate", Value: ""},
			{Key: "maxIssueCloseDate", Value: ""},
		},
	}

	resp, err := a.authRequest(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).Post(applicableIssuePath)
	})
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		slog.Error("applicable issue request failed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("applicable issue request failed with status %d", resp.StatusCode())
	}

	searchResp := meroShareModel.IssueSearchResponse{}
	if err = json.Unmarshal(resp.Body(), &searchResp); err != nil {
		slog.Error("can't unmarshall response into meroShareModel.IssueSearchResponse", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	slog.Debug("FetchApplicableIssues completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("issues", len(searchResp.Object)))

	return searchResp.Object, nil
}

// FetchBODetail returns the beneficiary owner record for the given BOID.
// Served from the view host, hence the separate path prefix.
func (a *MeroShareApi) FetchBODetail(ctx context.Context, boid string) (meroShareModel.BODetail, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MeroShareApi.FetchBODetail"

	slog.Debug("FetchBODetail start", slog.String("rqID", rqID), slog.String("op", op), slog.String("boid", boid))

	resp, err := a.authRequest(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(fmt.Sprintf(boDetailPath, boid))
	})
	if err != nil {
		return meroShareModel.BODetail{}, err
	}

	if !resp.IsSuccess() {
		slog.Error("bo detail request failed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		if resp.StatusCode() == http.StatusNotFound {
			return meroShareModel.BODetail{}, fmt.Errorf("bo detail request failed with status %d: %w", resp.StatusCode(), externalApi.ErrNotFound)
		}
		return meroShareModel.BODetail{}, fmt.Errorf("bo detail request failed with status %d", resp.StatusCode())
	}

	boDetail := meroShareModel.BODetail{}
	if err = json.Unmarshal(resp.Body(), &boDetail); err != nil {
		slog.Error("can't unmarshall response into meroShareModel.BODetail", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return meroShareModel.BODetail{}, err
	}

	slog.Debug("FetchBODetail completed", slog.String("rqID", rqID), slog.String("op", op))

	return boDetail, nil
}

// FetchBankRequest resolves a bank code to the internal bank identifier.
func (a *MeroShareApi) FetchBankRequest(ctx context.Context, bankCode string) (int, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MeroShareApi.FetchBankRequest"

	slog.Debug("FetchBankRequest start", slog.String("rqID", rqID), slog.String("op", op), slog.String("bankCode", bankCode))

	resp, err := a.authRequest(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(fmt.Sprintf(bankRequestPath, bankCode))
	})
	if err != nil {
		return 0, err
	}

	if !resp.IsSuccess() {
		slog.Error("bank request failed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		if resp.StatusCode() == http.StatusNotFound {
			return 0, fmt.Errorf("bank request failed with status %d: %w", resp.StatusCode(), externalApi.ErrNotFound)
		}
		return 0, fmt.Errorf("bank request failed with status %d", resp.StatusCode())
	}

	bankReq := meroShareModel.BankRequest{}
	if err = json.Unmarshal(resp.Body(), &bankReq); err != nil {
		slog.Error("can't unmarshall response into meroShareModel.BankRequest", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	if bankReq.Bank.ID == 0 {
		slog.Error("bank request response without bank id", slog.String("rqID", rqID), slog.String("op", op), slog.String("bankCode", bankCode))
		return 0, fmt.Errorf("bank for code %q: %w", bankCode, externalApi.ErrNotFound)
	}

	slog.Debug("FetchBankRequest completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("bankID", bankReq.Bank.ID))

	return bankReq.Bank.ID, nil
}

// FetchBankAccount returns the first registered account for the bank. The
// remote returns a list; an empty list means no linked bank account.
func (a *MeroShareApi) FetchBankAccount(ctx context.Context, bankID int) (meroShareModel.BankAccount, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MeroShareApi.FetchBankAccount"

	slog.Debug("FetchBankAccount start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("bankID", bankID))

	resp, err := a.authRequest(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(fmt.Sprintf(bankAccountPath, bankID))
	})
	if err != nil {
		return meroShareModel.BankAccount{}, err
	}

	if !resp.IsSuccess() {
		slog.Error("bank account request failed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return meroShareModel.BankAccount{}, fmt.Errorf("bank account request failed with status %d", resp.StatusCode())
	}

	accounts := make([]meroShareModel.BankAccount, 0)
	if err = json.Unmarshal(resp.Body(), &accounts); err != nil {
		slog.Error("can't unmarshall response into []meroShareModel.BankAccount", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return meroShareModel.BankAccount{}, err
	}

	if len(accounts) == 0 {
		slog.Error("no bank account registered for bank", slog.String("rqID", rqID), slog.String("op", op), slog.Int("bankID", bankID))
		return meroShareModel.BankAccount{}, fmt.Errorf("bank account for bank %d: %w", bankID, externalApi.ErrNotFound)
	}

	slog.Debug("FetchBankAccount completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("customerID", accounts[0].ID))

	return accounts[0], nil
}

// Apply submits a composed application payload.
func (a *MeroShareApi) Apply(ctx context.Context, payload meroShareModel.ApplyRequest) (meroShareModel.ApplyResponse, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MeroShareApi.Apply"

	slog.Debug("Apply start", slog.String("rqID", rqID), slog.String("op", op), slog.String("companyShareID", payload.CompanyShareID))

	resp, err := a.authRequest(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(payload).Post(applyPath)
	})
	if err != nil {
		return meroShareModel.ApplyResponse{}, err
	}

	if !resp.IsSuccess() {
		slog.Error("apply request failed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return meroShareModel.ApplyResponse{}, &ApplyError{StatusCode: resp.StatusCode(), Message: serverMessage(resp.Body())}
	}

	applyResp := meroShareModel.ApplyResponse{}
	if err = json.Unmarshal(resp.Body(), &applyResp); err != nil {
		slog.Error("can't unmarshall response into meroShareModel.ApplyResponse", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return meroShareModel.ApplyResponse{}, err
	}

	slog.Debug("Apply completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("referenceNo", applyResp.ReferenceNo))

	return applyResp, nil
}

// FetchApplicationReports returns past and active application rows.
// Only the first page (size 200) is fetched.
func (a *MeroShareApi) FetchApplicationReports(ctx context.Context) ([]meroShareModel.ApplicationReport, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MeroShareApi.FetchApplicationReports"

	slog.Debug("FetchApplicationReports start", slog.String("rqID", rqID), slog.String("op", op))

	body := meroShareModel.SearchRequest{
		FilterFieldParams: []meroShareModel.FilterFieldParam{
			{Key: "companyShare.companyIssue.companyISIN.script", Alias: "Scrip"},
		},
		Page:                    1,
		Size:                    200,
		SearchRoleViewConstants: "VIEW_APPLICANT_FORM_COMPLETE",
		FilterDateParams: []meroShareModel.FilterDateParam{
			{Key: "appliedDate", Value: ""},
		},
	}

	resp, err := a.authRequest(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).Post(reportSearchPath)
	})
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		slog.Error("application report request failed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("application report request failed with status %d", resp.StatusCode())
	}

	searchResp := meroShareModel.ReportSearchResponse{}
	if err = json.Unmarshal(resp.Body(), &searchResp); err != nil {
		slog.Error("can't unmarshall response into meroShareModel.ReportSearchResponse", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	slog.Debug("FetchApplicationReports completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("reports", len(searchResp.Object)))

	return searchResp.Object, nil
}

// FetchApplicationDetail returns the status detail for one applicant form.
func (a *MeroShareApi) FetchApplicationDetail(ctx context.Context, applicantFormID int64) (meroShareModel.ApplicationDetail, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MeroShareApi.FetchApplicationDetail"

	slog.Debug("FetchApplicationDetail start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("applicantFormID", applicantFormID))

	resp, err := a.authRequest(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(fmt.Sprintf(reportDetailPath, applicantFormID))
	})
	if err != nil {
		return meroShareModel.ApplicationDetail{}, err
	}

	if !resp.IsSuccess() {
		slog.Error("application detail request failed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		if resp.StatusCode() == http.StatusNotFound {
			return meroShareModel.ApplicationDetail{}, fmt.Errorf("application detail request failed with status %d: %w", resp.StatusCode(), externalApi.ErrNotFound)
		}
		return meroShareModel.ApplicationDetail{}, fmt.Errorf("application detail request failed with status %d", resp.StatusCode())
	}

	detail := meroShareModel.ApplicationDetail{}
	if err = json.Unmarshal(resp.Body(), &detail); err != nil {
		slog.Error("can't unmarshall response into meroShareModel.ApplicationDetail", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return meroShareModel.ApplicationDetail{}, err
	}

	slog.Debug("FetchApplicationDetail completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("statusName", detail.StatusName))

	return detail, nil
}

// serverMessage best-effort extracts the message field from an error body.
func serverMessage(body []byte) string {
	var errBody struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errBody); err != nil {
		return ""
	}
	return errBody.Message
}
