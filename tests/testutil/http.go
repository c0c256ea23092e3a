package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// APIClient sends requests straight into an http.Handler, normally the
// fully wired gin engine. Requests carry Actor in X-User-ID unless Token
// is set.
type APIClient struct {
	Handler http.Handler
	Prefix  string
	Actor   uuid.UUID
	Token   string
}

// NewAPIClient targets /api/v1 as TestActorID
func NewAPIClient(handler http.Handler) *APIClient {
	return &APIClient{Handler: handler, Prefix: "/api/v1", Actor: TestActorID()}
}

// As returns a copy of the client acting as actor
func (c *APIClient) As(actor uuid.UUID) *APIClient {
	clone := *c
	clone.Actor = actor
	return &clone
}

// Do sends body as JSON when it is not nil
func (c *APIClient) Do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err, "Failed to marshal request body")
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, c.Prefix+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.Token)
	case c.Actor != uuid.Nil:
		req.Header.Set("X-User-ID", c.Actor.String())
	}

	w := httptest.NewRecorder()
	c.Handler.ServeHTTP(w, req)
	return w
}

func (c *APIClient) Get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return c.Do(t, http.MethodGet, path, nil)
}

func (c *APIClient) Post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return c.Do(t, http.MethodPost, path, body)
}

// DecodeResponse parses the response envelope
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to parse response: %s", w.Body.String())
	return resp
}

// DecodeData parses the data member of a successful envelope into T
func DecodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var envelope struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), "Failed to parse response: %s", w.Body.String())
	require.True(t, envelope.Success, "Expected a successful response: %s", w.Body.String())
	return envelope.Data
}

// RequireStatus fails with the body attached so a failed call is readable
func RequireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, "Unexpected status, body: %s", w.Body.String())
}

// AssertErrorCode checks status and envelope error code
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	assert.Equal(t, status, w.Code, "Unexpected status, body: %s", w.Body.String())
	resp := DecodeResponse(t, w)
	assert.False(t, resp.Success)
	if assert.NotNil(t, resp.Error) {
		assert.Equal(t, code, resp.Error.Code)
	}
}
