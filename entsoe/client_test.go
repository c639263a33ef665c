package entsoe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDayAhead(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(sampleDocument))
	}))
	defer server.Close()

	client := NewAPIClient()
	client.SetBaseURL(server.URL)

	start := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	doc, err := client.FetchDayAhead(context.Background(), "token123", "10YNL----------L", start, end)
	require.NoError(t, err)

	assert.Equal(t, "A44", gotQuery["documentType"])
	assert.Equal(t, "10YNL----------L", gotQuery["in_Domain"])
	assert.Equal(t, "10YNL----------L", gotQuery["out_Domain"])
	assert.Equal(t, "202503012300", gotQuery["periodStart"])
	assert.Equal(t, "202503022300", gotQuery["periodEnd"])
	assert.Equal(t, "token123", gotQuery["securityToken"])

	require.Len(t, doc.TimeSeries, 1)
	assert.Equal(t, "A44", doc.Type)
}

func TestFetchDayAheadValidation(t *testing.T) {
	client := NewAPIClient()
	now := time.Now()

	_, err := client.FetchDayAhead(context.Background(), "", "10YNL----------L", now, now)
	assert.Error(t, err, "empty token must be rejected")

	_, err = client.FetchDayAhead(context.Background(), "token", "", now, now)
	assert.Error(t, err, "empty domain must be rejected")
}

func TestFetchDayAheadHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewAPIClient()
	client.SetBaseURL(server.URL)

	_, err := client.FetchDayAhead(context.Background(), "bad", "10YNL----------L", time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
