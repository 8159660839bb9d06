package meroShareApi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nepsetools/meroshare_apply_bot/config"
	"github.com/nepsetools/meroshare_apply_bot/internal/externalApi"
	"github.com/nepsetools/meroshare_apply_bot/internal/model/meroShareModel"
)

func newTestApi(serverURL string) *MeroShareApi {
	cfg := &config.Config{
		API: config.API{
			Timeout:      5 * time.Second,
			MeroShareApi: config.MeroShareApi{Url: serverURL},
		},
		MeroShare: config.MeroShare{
			Username: "00123456789",
			Password: "secret",
			DpID:     "123",
		},
	}
	return New(cfg)
}

func TestResolveClientID(t *testing.T) {
	tests := []struct {
		name        string
		brokerCode  string
		directory   []meroShareModel.Capital
		expectedID  int
		expectedErr error
	}{
		{
			name:       "broker code present",
			brokerCode: "123",
			directory:  []meroShareModel.Capital{{ID: 55, Code: "123", Name: "Some Capital"}},
			expectedID: 55,
		},
		{
			name:        "broker code absent",
			brokerCode:  "999",
			directory:   []meroShareModel.Capital{{ID: 55, Code: "123", Name: "Some Capital"}},
			expectedErr: externalApi.ErrNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loginCalls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/meroShare/capital/":
					assert.Equal(t, http.MethodGet, r.Method)
					assert.Equal(t, "https://meroshare.cdsc.com.np", r.Header.Get("Origin"))
					assert.Equal(t, "https://meroshare.cdsc.com.np/", r.Header.Get("Referer"))
					json.NewEncoder(w).Encode(tc.directory)
				case "/meroShare/auth/":
					loginCalls++
					w.WriteHeader(http.StatusOK)
				default:
					t.Errorf("unexpected request to %s", r.URL.Path)
				}
			}))
			defer server.Close()

			api := newTestApi(server.URL)

			clientID, err := api.ResolveClientID(context.Background(), tc.brokerCode)

			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				assert.Equal(t, 0, loginCalls, "no login request must be issued on a directory miss")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedID, clientID)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Run("success stores token from response header", func(t *testing.T) {
		var authBody meroShareModel.LoginRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/meroShare/capital/":
				json.NewEncoder(w).Encode([]meroShareModel.Capital{{ID: 55, Code: "123"}})
			case "/meroShare/auth/":
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&authBody))
				w.Header().Set("Authorization", "Bearer token-1")
				w.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		api := newTestApi(server.URL)

		err := api.Login(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 55, authBody.ClientID)
		assert.Equal(t, "00123456789", authBody.Username)
		assert.Equal(t, "secret", authBody.Password)
		assert.Equal(t, "Bearer token-1", api.token)
	})

	t.Run("non-success status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/meroShare/capital/":
				json.NewEncoder(w).Encode([]meroShareModel.Capital{{ID: 55, Code: "123"}})
			case "/meroShare/auth/":
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
			}
		}))
		defer server.Close()

		api := newTestApi(server.URL)

		err := api.Login(context.Background())

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
		assert.Equal(t, "invalid credentials", authErr.Message)
		assert.Empty(t, api.token)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/meroShare/capital/":
				json.NewEncoder(w).Encode([]meroShareModel.Capital{{ID: 55, Code: "123"}})
			case "/meroShare/auth/":
				w.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		api := newTestApi(server.URL)

		err := api.Login(context.Background())

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Empty(t, api.token)
	})
}

func TestAuthRequest_LazyLogin(t *testing.T) {
	loginCalls := 0
	issueCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/meroShare/capital/":
			json.NewEncoder(w).Encode([]meroShareModel.Capital{{ID: 55, Code: "123"}})
		case "/meroShare/auth/":
			loginCalls++
			w.Header().Set("Authorization", "Bearer token-1")
			w.WriteHeader(http.StatusOK)
		case "/meroShare/companyShare/applicableIssue/":
			issueCalls++
			assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(meroShareModel.IssueSearchResponse{})
		}
	}))
	defer server.Close()

	api := newTestApi(server.URL)

	issues, err := api.FetchApplicableIssues(context.Background())

	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 1, loginCalls, "exactly one login before the first authenticated request")
	assert.Equal(t, 1, issueCalls)
}

func TestAuthRequest_SingleReloginOn401(t *testing.T) {
	loginCalls := 0
	issueCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/meroShare/capital/":
			json.NewEncoder(w).Encode([]meroShareModel.Capital{{ID: 55, Code: "123"}})
		case "/meroShare/auth/":
			loginCalls++
			w.Header().Set("Authorization", "Bearer fresh-token")
			w.WriteHeader(http.StatusOK)
		case "/meroShare/companyShare/applicableIssue/":
			issueCalls++
			if r.Header.Get("Authorization") != "Bearer fresh-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(meroShareModel.IssueSearchResponse{
				Object: []meroShareModel.Issue{{Scrip: "XYZ", CompanyShareID: 9}},
			})
		}
	}))
	defer server.Close()

	api := newTestApi(server.URL)
	api.token = "Bearer stale-token"

	issues, err := api.FetchApplicableIssues(context.Background())

	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "XYZ", issues[0].Scrip)
	assert.Equal(t, 1, loginCalls, "one re-login after the 401")
	assert.Equal(t, 2, issueCalls, "original request plus one retry")
}

func TestAuthRequest_SecondConsecutive401(t *testing.T) {
	loginCalls := 0
	issueCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/meroShare/capital/":
			json.NewEncoder(w).Encode([]meroShareModel.Capital{{ID: 55, Code: "123"}})
		case "/meroShare/auth/":
			loginCalls++
			w.Header().Set("Authorization", "Bearer fresh-token")
			w.WriteHeader(http.StatusOK)
		case "/meroShare/companyShare/applicableIssue/":
			issueCalls++
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	api := newTestApi(server.URL)
	api.token = "Bearer stale-token"

	_, err := api.FetchApplicableIssues(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, 1, loginCalls, "only one re-login attempt")
	assert.Equal(t, 2, issueCalls, "no third attempt after the second 401")
}

func TestFetchApplicableIssues_EmptyObject(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty object field", body: `{"object": []}`},
		{name: "missing object field", body: `{}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/meroShare/companyShare/applicableIssue/":
					w.Write([]byte(tc.body))
				default:
					t.Errorf("unexpected request to %s", r.URL.Path)
				}
			}))
			defer server.Close()

			api := newTestApi(server.URL)
			api.token = "Bearer token-1"

			issues, err := api.FetchApplicableIssues(context.Background())

			require.NoError(t, err)
			assert.Empty(t, issues)
		})
	}
}

func TestFetchBODetail(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/meroShareView/myDetail/1301230000123456", r.URL.Path)
			assert.Equal(t, http.MethodGet, r.Method)
			json.NewEncoder(w).Encode(meroShareModel.BODetail{
				Boid:     "1301230000123456",
				BankCode: "NIC",
				Name:     "Some Holder",
			})
		}))
		defer server.Close()

		api := newTestApi(server.URL)
		api.token = "Bearer token-1"

		boDetail, err := api.FetchBODetail(context.Background(), "1301230000123456")

		require.NoError(t, err)
		assert.Equal(t, "NIC", boDetail.BankCode)
		assert.Equal(t, "1301230000123456", boDetail.Boid)
	})

	t.Run("unknown boid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		api := newTestApi(server.URL)
		api.token = "Bearer token-1"

		_, err := api.FetchBODetail(context.Background(), "unknown")

		require.ErrorIs(t, err, externalApi.ErrNotFound)
	})
}

func TestFetchBankRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bankRequest/NIC", r.URL.Path)
		json.NewEncoder(w).Encode(meroShareModel.BankRequest{Bank: meroShareModel.Bank{ID: 44, Code: "NIC"}})
	}))
	defer server.Close()

	api := newTestApi(server.URL)
	api.token = "Bearer token-1"

	bankID, err := api.FetchBankRequest(context.Background(), "NIC")

	require.NoError(t, err)
	assert.Equal(t, 44, bankID)
}

func TestFetchBankAccount(t *testing.T) {
	t.Run("first account returned", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/meroShare/bank/44", r.URL.Path)
			json.NewEncoder(w).Encode([]meroShareModel.BankAccount{
				{ID: 77, AccountBranchID: 501, AccountNumber: "0123456789012"},
				{ID: 78, AccountBranchID: 502, AccountNumber: "9999999999999"},
			})
		}))
		defer server.Close()

		api := newTestApi(server.URL)
		api.token = "Bearer token-1"

		account, err := api.FetchBankAccount(context.Background(), 44)

		require.NoError(t, err)
		assert.Equal(t, 77, account.ID)
		assert.Equal(t, 501, account.AccountBranchID)
		assert.Equal(t, "0123456789012", account.AccountNumber)
	})

	t.Run("empty list is terminal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		api := newTestApi(server.URL)
		api.token = "Bearer token-1"

		_, err := api.FetchBankAccount(context.Background(), 44)

		require.ErrorIs(t, err, externalApi.ErrNotFound)
	})
}

func TestApply(t *testing.T) {
	t.Run("success returns referenceNo", func(t *testing.T) {
		var gotPayload meroShareModel.ApplyRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/meroShare/applicantForm/share/apply", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			json.NewEncoder(w).Encode(meroShareModel.ApplyResponse{Message: "success", ReferenceNo: "REF-1"})
		}))
		defer server.Close()

		api := newTestApi(server.URL)
		api.token = "Bearer token-1"

		resp, err := api.Apply(context.Background(), meroShareModel.ApplyRequest{
			AccountTypeID:  1,
			AppliedKitta:   "10",
			CompanyShareID: "9",
		})

		require.NoError(t, err)
		assert.Equal(t, "REF-1", resp.ReferenceNo)
		assert.Equal(t, 1, gotPayload.AccountTypeID)
	})

	t.Run("rejection carries server message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"message": "already applied"})
		}))
		defer server.Close()

		api := newTestApi(server.URL)
		api.token = "Bearer token-1"

		_, err := api.Apply(context.Background(), meroShareModel.ApplyRequest{})

		var applyErr *ApplyError
		require.ErrorAs(t, err, &applyErr)
		assert.Equal(t, http.StatusConflict, applyErr.StatusCode)
		assert.Equal(t, "already applied", applyErr.Message)
	})
}

func TestFetchApplicationReports(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meroShare/applicantForm/active/search/", r.URL.Path)

		var body meroShareModel.SearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 1, body.Page)
		assert.Equal(t, 200, body.Size)
		assert.Equal(t, "VIEW_APPLICANT_FORM_COMPLETE", body.SearchRoleViewConstants)

		json.NewEncoder(w).Encode(meroShareModel.ReportSearchResponse{
			Object: []meroShareModel.ApplicationReport{
				{ApplicantFormID: 101, Scrip: "XYZ", CompanyName: "Xyz Ltd", AppliedKitta: 10, StatusName: "APPROVED"},
			},
			TotalCount: 1,
		})
	}))
	defer server.Close()

	api := newTestApi(server.URL)
	api.token = "Bearer token-1"

	reports, err := api.FetchApplicationReports(context.Background())

	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, int64(101), reports[0].ApplicantFormID)
}

func TestFetchApplicationDetail(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/meroShare/applicantForm/report/detail/101", r.URL.Path)
			json.NewEncoder(w).Encode(meroShareModel.ApplicationDetail{
				ApplicantFormID: 101,
				Scrip:           "XYZ",
				StatusName:      "APPROVED",
				StageName:       "ALLOTTED",
				Remark:          "allotted 10 units",
			})
		}))
		defer server.Close()

		api := newTestApi(server.URL)
		api.token = "Bearer token-1"

		detail, err := api.FetchApplicationDetail(context.Background(), 101)

		require.NoError(t, err)
		assert.Equal(t, "ALLOTTED", detail.StageName)
		assert.Equal(t, "allotted 10 units", detail.Remark)
	})

	t.Run("invalid id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		api := newTestApi(server.URL)
		api.token = "Bearer token-1"

		_, err := api.FetchApplicationDetail(context.Background(), 999)

		require.ErrorIs(t, err, externalApi.ErrNotFound)
	})
}
