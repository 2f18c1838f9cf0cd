package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
)

func TestParseFeedLine(t *testing.T) {
	fallback := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		line     string
		wantOK   bool
		wantCode string
		wantDate time.Time
	}{
		{
			name:     "well formed",
			line:     "KS2026AUG 15.08.2026",
			wantOK:   true,
			wantCode: "KS2026AUG",
			wantDate: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "lowercase code is normalized",
			line:     "summer26 01.06.2026",
			wantOK:   true,
			wantCode: "SUMMER26",
			wantDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "bad date keeps the code with fetch time",
			line:     "GOODCODE 99.99.2026",
			wantOK:   true,
			wantCode: "GOODCODE",
			wantDate: fallback,
		},
		{name: "missing date", line: "LONELY", wantOK: false},
		{name: "too many fields", line: "A B C", wantOK: false},
		{name: "non-alphanumeric code", line: "BAD-CODE 01.01.2026", wantOK: false},
		{name: "empty", line: "   ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := parseFeedLine(tt.line, fallback)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantCode, entry.code)
			assert.Equal(t, tt.wantDate, entry.date)
		})
	}
}

func TestParseFeedDate(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"15.08.2026", true},
		{"1.1.2026", true},
		{"32.01.2026", false},
		{"01.13.2026", false},
		{"01.01.1999", false},
		{"2026-08-15", false},
		{"abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, ok := parseFeedDate(tt.in)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestSyncInsertsNewCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Write([]byte(`{"codes":["NEW1 15.08.2026","NEW2 16.08.2026","oops-bad-line"]}`))
	}))
	defer srv.Close()

	d := NewDiscoveryService(DiscoveryConfig{FeedURL: srv.URL, APIKey: "k"}, env.codes)

	result, err := d.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, 2, result.NewCodes)
	assert.Zero(t, result.ExistingCodes)
	assert.Equal(t, 3, result.TotalFeed)
	assert.Equal(t, []string{"oops-bad-line"}, result.Malformed)

	code, err := env.codes.FindByCode(ctx, "NEW1")
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, model.ValidationPending, code.ValidationStatus)
	assert.Equal(t, model.SourceAPI, code.Source)
}

func TestSyncIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"codes":["SAME1 15.08.2026"]}`))
	}))
	defer srv.Close()

	d := NewDiscoveryService(DiscoveryConfig{FeedURL: srv.URL}, env.codes)

	_, err := d.Sync(ctx)
	require.NoError(t, err)

	result, err := d.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.NewCodes)
	assert.Equal(t, 1, result.ExistingCodes)
}

func TestSyncDoesNotTouchClassifiedCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.codes.InsertIgnore(ctx, "KNOWN1", model.ValidationValidated, model.SourceManual, time.Now())
	require.NoError(t, err)
	require.True(t, created)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"codes":["KNOWN1 15.08.2026"]}`))
	}))
	defer srv.Close()

	d := NewDiscoveryService(DiscoveryConfig{FeedURL: srv.URL}, env.codes)
	_, err = d.Sync(ctx)
	require.NoError(t, err)

	code, err := env.codes.FindByCode(ctx, "KNOWN1")
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, model.ValidationValidated, code.ValidationStatus,
		"a re-listed code keeps its classification")
}

func TestSyncFeedError(t *testing.T) {
	env := newTestEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	d := NewDiscoveryService(DiscoveryConfig{FeedURL: srv.URL}, env.codes)
	_, err := d.Sync(context.Background())
	assert.ErrorContains(t, err, "invalid api key")
}

func TestSyncHTTPError(t *testing.T) {
	env := newTestEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDiscoveryService(DiscoveryConfig{FeedURL: srv.URL}, env.codes)
	_, err := d.Sync(context.Background())
	assert.Error(t, err)
}
