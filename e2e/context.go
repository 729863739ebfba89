package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext holds the HTTP client and the state shared between the steps
// of one scenario.
type TestContext struct {
	BaseURL string
	Client  *http.Client

	lastStatus int
	lastBody   []byte

	token string
	saved map[string]string
}

// NewTestContext returns a context talking to baseURL.
func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
		saved:   make(map[string]string),
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.token = ""
	tc.saved = make(map[string]string)
}

func (tc *TestContext) do(method, path string, body interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) PATCH(path string, body interface{}) error {
	return tc.do(http.MethodPatch, path, body, nil)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil, nil)
}

// GetResponseField returns a top-level field of the last JSON object response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(tc.lastBody, &obj); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", tc.lastBody)
	}
	v, ok := obj[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response: %s", field, tc.lastBody)
	}
	return v, nil
}

func (tc *TestContext) GetLastResponseStatus() int  { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

func (tc *TestContext) GetAccessToken() string      { return tc.token }
func (tc *TestContext) SetAccessToken(token string) { tc.token = token }

// Save remembers a value (an ID or token) under name for later steps.
func (tc *TestContext) Save(name, value string) { tc.saved[name] = value }

func (tc *TestContext) Saved(name string) (string, error) {
	v, ok := tc.saved[name]
	if !ok {
		return "", fmt.Errorf("nothing saved as %q", name)
	}
	return v, nil
}
