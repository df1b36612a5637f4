package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateServiceURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "valid HTTPS URL", url: "https://api.pinata.cloud", wantErr: false},
		{name: "invalid HTTP URL", url: "http://api.pinata.cloud", wantErr: true},
		{name: "valid localhost for testing", url: "http://localhost:8080", wantErr: false},
		{name: "valid 127.0.0.1 for testing", url: "http://127.0.0.1:8080", wantErr: false},
		{name: "valid IPv6 localhost for testing", url: "http://[::1]:8080", wantErr: false},
		{name: "empty URL", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServiceURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type echoResponse struct {
	Name string `json:"name"`
	Auth string `json:"auth"`
}

func TestMakeJSONRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(echoResponse{Name: body["name"], Auth: r.Header.Get("Authorization")})
	}))
	defer server.Close()

	resp, err := MakeJSONRequest[echoResponse](
		context.Background(), server.Client(), http.MethodPost, server.URL,
		map[string]string{"name": "beat"}, map[string]string{"Authorization": "Bearer token"}, "echo",
	)
	require.NoError(t, err)
	assert.Equal(t, "beat", resp.Name)
	assert.Equal(t, "Bearer token", resp.Auth)
}

func TestMakeJSONRequestHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer server.Close()

	_, err := MakeJSONRequest[echoResponse](context.Background(), server.Client(), http.MethodGet, server.URL, nil, nil, "echo")
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, "bad key", httpErr.Body)
}

func TestCreateHTTPClientWithTimeouts(t *testing.T) {
	client := CreateHTTPClientWithTimeouts()
	assert.NotZero(t, client.Timeout)
	assert.NotNil(t, client.CheckRedirect)
}
