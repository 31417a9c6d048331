package bier

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"time"

	resty "github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	REQUEST_TIMEOUT = 10 * time.Second
	// Two retries after the initial attempt, three tries in total.
	RETRY_COUNT         = 2
	RETRY_WAIT_TIME     = 2 * time.Second
	RETRY_MAX_WAIT_TIME = 10 * time.Second
)

// Interface for fetching JSON documents from upstream data feeds.
type Fetcher interface {
	GetJSON(url string, params map[string]string, headers map[string]string, v interface{}) error
	PostJSON(url string, body interface{}, headers map[string]string, v interface{}) error
}

// Client is an HTTP client for public data APIs. Timeouts, throttling and
// server errors are retried with exponential backoff; client errors and
// unparseable bodies are returned immediately.
type Client struct {
	httpClient *resty.Client
}

func NewClient() *Client {
	httpClient := resty.New()
	httpClient.SetTimeout(REQUEST_TIMEOUT).
		SetRetryCount(RETRY_COUNT).
		SetRetryWaitTime(RETRY_WAIT_TIME).
		SetRetryMaxWaitTime(RETRY_MAX_WAIT_TIME).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() == 500 ||
				r.StatusCode() >= 502 && r.StatusCode() <= 504
		})
	return &Client{httpClient: httpClient}
}

// GetJSON sends a GET request and unmarshals the response body into v.
// Returns a StatusError for non-2xx responses and a DecodeError when the
// body is not valid JSON.
func (c *Client) GetJSON(url string, params map[string]string, headers map[string]string, v interface{}) error {
	var defaultHeaders = map[string]string{
		"Content-Type": "application/json",
	}

	if headers == nil {
		headers = make(map[string]string)
	}

	maps.Copy(headers, defaultHeaders)

	logrus.Debug("Sending GET request on url: " + url)

	resp, err := c.httpClient.R().EnableTrace().
		SetHeaders(headers).
		SetQueryParams(params).
		Get(url)

	if err != nil {
		return fmt.Errorf("sending GET request on url %s: %w", url, err)
	}

	return c.decodeResponse(resp, url, v)
}

// PostJSON sends a POST request with body marshaled as JSON. Pass a nil v to
// ignore the response body.
func (c *Client) PostJSON(url string, body interface{}, headers map[string]string, v interface{}) error {
	var defaultHeaders = map[string]string{
		"Content-Type": "application/json",
	}

	if headers == nil {
		headers = make(map[string]string)
	}

	maps.Copy(headers, defaultHeaders)

	logrus.Debug("Sending POST request on url: " + url)

	resp, err := c.httpClient.R().EnableTrace().
		SetHeaders(headers).
		SetBody(body).
		Post(url)

	if err != nil {
		return fmt.Errorf("sending POST request on url %s: %w", url, err)
	}

	return c.decodeResponse(resp, url, v)
}

func (c *Client) decodeResponse(resp *resty.Response, url string, v interface{}) error {
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusBadRequest {
		return &StatusError{StatusCode: resp.StatusCode(), URL: url}
	}

	if v == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return &DecodeError{URL: url, Err: err}
	}

	return nil
}
