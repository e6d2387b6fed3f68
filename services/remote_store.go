package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tgregoire/invgov-backend/models"
	"github.com/tgregoire/invgov-backend/shared"
)

// RemoteStore is the adapter boundary to the authoritative system of record.
// Every method is a network call; callers treat failures as retryable and
// fall back to the local cache.
type RemoteStore interface {
	Ping() error
	FetchHierarchy() ([]models.HierarchyEntry, int, error)
	FetchRequests() ([]models.InvestmentRequest, int, error)
	FetchBudgets() ([]models.Budget, int, error)
	FetchAccounts() ([]models.Account, int, error)
	CreateRequest(req *models.InvestmentRequest) (int64, error)
	UpdateRequest(req *models.InvestmentRequest) error
	DeleteRequest(id int64) error
	CreateOpportunityLink(link models.OpportunityLink) error
	DeleteOpportunityLink(requestID int64, opportunityID string) error
}

// HTTPRemoteStore talks to the system of record's JSON API with pooled
// clients, rate limiting and bounded retry.
type HTTPRemoteStore struct {
	config        shared.RemoteConfig
	clientFactory *shared.HTTPClientFactory
	rateLimiter   *shared.HTTPRequestRateLimiter
	metrics       *shared.HTTPMetrics
}

// NewHTTPRemoteStore creates a remote store adapter
func NewHTTPRemoteStore(config shared.RemoteConfig) *HTTPRemoteStore {
	return &HTTPRemoteStore{
		config:        config,
		clientFactory: shared.NewHTTPClientFactory(config.HTTPRequestTimeout),
		rateLimiter:   shared.NewHTTPRequestRateLimiter(config.RequestRateLimit),
		metrics:       shared.NewHTTPMetrics(),
	}
}

// Metrics exposes the adapter's HTTP metrics for periodic summaries.
func (r *HTTPRemoteStore) Metrics() *shared.HTTPMetrics {
	return r.metrics
}

// execute runs one rate-limited, retried API call and returns the response
// body for 2xx. A 404 maps to NotFound; other 4xx and every exhausted retry
// map to RemoteUnavailable.
func (r *HTTPRemoteStore) execute(method, path string, body []byte) ([]byte, error) {
	r.rateLimiter.EnforceRateLimit()

	endpoint := r.config.BaseURL + path
	buildRequest := func() (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		request, err := http.NewRequest(method, endpoint, reader)
		if err != nil {
			return nil, errors.Wrapf(err, "building %s %s", method, path)
		}
		shared.SetJSONAPIHeaders(request, r.config.APIToken)
		return request, nil
	}

	client := r.clientFactory.CreateOptimizedHTTPClient(r.config.HTTPRequestTimeout)
	started := time.Now()

	response, err := shared.ExecuteHTTPRequestWithRetry(client, buildRequest, r.config.MaxRetryAttempts)
	if err != nil {
		r.metrics.RecordHTTPRequest(false, 0, time.Since(started), "network", false)
		return nil, shared.NewRemoteUnavailable(method+" "+path, err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		r.metrics.RecordHTTPRequest(false, response.StatusCode, time.Since(started), "read_body", false)
		return nil, shared.NewRemoteUnavailable(method+" "+path, errors.Wrap(err, "reading response body"))
	}

	if response.StatusCode == http.StatusNotFound {
		r.metrics.RecordHTTPRequest(false, response.StatusCode, time.Since(started), "not_found", false)
		return nil, shared.NewNotFound("remote resource", path)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		r.metrics.RecordHTTPRequest(false, response.StatusCode, time.Since(started), "http_status", false)
		return nil, shared.NewRemoteUnavailable(method+" "+path,
			errors.Errorf("remote returned HTTP %d: %s", response.StatusCode, string(payload)))
	}

	r.metrics.RecordHTTPRequest(true, response.StatusCode, time.Since(started), "", false)
	return payload, nil
}

func (r *HTTPRemoteStore) Ping() error {
	_, err := r.execute(http.MethodGet, "/api/ping", nil)
	return err
}

// decodeList decodes the payload element by element so a single malformed
// record is skipped rather than aborting the whole batch. The skipped count
// goes back to the synchronizer for progress reporting.
func decodeList[T any](payload []byte, kind string) ([]T, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, 0, shared.NewDecodeFailure("decode "+kind, err)
	}

	records := make([]T, 0, len(raw))
	skipped := 0
	for i, element := range raw {
		var record T
		if err := json.Unmarshal(element, &record); err != nil {
			skipped++
			logrus.WithFields(logrus.Fields{
				"component": "HTTPRemoteStore",
				"kind":      kind,
				"index":     i,
			}).WithError(err).Warn("Skipping malformed remote record")
			continue
		}
		records = append(records, record)
	}

	return records, skipped, nil
}

func (r *HTTPRemoteStore) FetchHierarchy() ([]models.HierarchyEntry, int, error) {
	payload, err := r.execute(http.MethodGet, "/api/hierarchy", nil)
	if err != nil {
		return nil, 0, err
	}
	return decodeList[models.HierarchyEntry](payload, "hierarchy entry")
}

func (r *HTTPRemoteStore) FetchRequests() ([]models.InvestmentRequest, int, error) {
	payload, err := r.execute(http.MethodGet, "/api/requests", nil)
	if err != nil {
		return nil, 0, err
	}
	return decodeList[models.InvestmentRequest](payload, "investment request")
}

func (r *HTTPRemoteStore) FetchBudgets() ([]models.Budget, int, error) {
	payload, err := r.execute(http.MethodGet, "/api/budgets", nil)
	if err != nil {
		return nil, 0, err
	}
	return decodeList[models.Budget](payload, "budget")
}

func (r *HTTPRemoteStore) FetchAccounts() ([]models.Account, int, error) {
	payload, err := r.execute(http.MethodGet, "/api/accounts", nil)
	if err != nil {
		return nil, 0, err
	}
	return decodeList[models.Account](payload, "account")
}

// CreateRequest pushes a locally created request and returns the
// authoritative positive ID the remote assigned.
func (r *HTTPRemoteStore) CreateRequest(req *models.InvestmentRequest) (int64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, errors.Wrap(err, "encoding request for remote create")
	}

	payload, err := r.execute(http.MethodPost, "/api/requests", body)
	if err != nil {
		return 0, err
	}

	var result struct {
		RequestID int64 `json:"request_id"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return 0, shared.NewDecodeFailure("decode remote create response", err)
	}
	if result.RequestID <= 0 {
		return 0, shared.NewDecodeFailure("decode remote create response",
			errors.Errorf("remote assigned non-positive id %d", result.RequestID))
	}

	return result.RequestID, nil
}

func (r *HTTPRemoteStore) UpdateRequest(req *models.InvestmentRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "encoding request for remote update")
	}

	_, err = r.execute(http.MethodPut, fmt.Sprintf("/api/requests/%d", req.ID), body)
	return err
}

func (r *HTTPRemoteStore) DeleteRequest(id int64) error {
	_, err := r.execute(http.MethodDelete, fmt.Sprintf("/api/requests/%d", id), nil)
	return err
}

func (r *HTTPRemoteStore) CreateOpportunityLink(link models.OpportunityLink) error {
	body, err := json.Marshal(link)
	if err != nil {
		return errors.Wrap(err, "encoding opportunity link")
	}

	_, err = r.execute(http.MethodPost, fmt.Sprintf("/api/requests/%d/opportunities", link.RequestID), body)
	return err
}

func (r *HTTPRemoteStore) DeleteOpportunityLink(requestID int64, opportunityID string) error {
	path := fmt.Sprintf("/api/requests/%d/opportunities/%s", requestID, url.PathEscape(opportunityID))
	_, err := r.execute(http.MethodDelete, path, nil)
	return err
}
