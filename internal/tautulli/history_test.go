// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

package tautulli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/tomtom215/plexmap/internal/config"
	models "github.com/tomtom215/plexmap/internal/models/tautulli"
)

// fakeHistoryServer serves a Tautulli get_history endpoint backed by a
// fixed number of records. requests counts get_history calls.
type fakeHistoryServer struct {
	totalRecords int
	requests     int
	failOnPage   int // 1-based page index to fail with HTTP 500, 0 = never
}

func (f *fakeHistoryServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cmd") != "get_history" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Query().Get("apikey") == "" {
			t.Error("request missing apikey parameter")
		}
		if r.URL.Query().Get("grouping") != "0" {
			t.Error("request missing grouping=0 parameter")
		}

		f.requests++
		if f.failOnPage > 0 && f.requests == f.failOnPage {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		length, _ := strconv.Atoi(r.URL.Query().Get("length"))

		count := f.totalRecords - start
		if count < 0 {
			count = 0
		}
		if count > length {
			count = length
		}

		records := make([]models.HistoryRecord, count)
		for i := range records {
			records[i] = models.HistoryRecord{
				IPAddress: fmt.Sprintf("93.184.%d.%d", (start+i)/256%256, (start+i)%256),
				User:      "tester",
			}
		}

		resp := models.History{}
		resp.Response.Result = "success"
		resp.Response.Data = models.HistoryData{
			RecordsFiltered: f.totalRecords,
			RecordsTotal:    f.totalRecords,
			Data:            records,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("failed to encode fake response: %v", err)
		}
	}
}

func newTestClient(serverURL string, pageSize int) *Client {
	c := NewClient(&config.TautulliConfig{
		URL:      serverURL,
		APIKey:   "test-key",
		PageSize: pageSize,
	})
	c.retryBaseDelay = time.Millisecond
	return c
}

func TestFetchHistoryLimitTruncation(t *testing.T) {
	// Source always returns exactly the requested page size; limit 2500
	// with page size 1000 must yield exactly 2500 records in 3 requests.
	fake := &fakeHistoryServer{totalRecords: 100000}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := newTestClient(srv.URL, 1000)
	records, err := client.FetchHistory(context.Background(), 2500, nil)
	if err != nil {
		t.Fatalf("FetchHistory failed: %v", err)
	}
	if len(records) != 2500 {
		t.Errorf("got %d records, expected 2500", len(records))
	}
	if fake.requests != 3 {
		t.Errorf("made %d requests, expected 3", fake.requests)
	}
}

func TestFetchHistoryStopsOnShortPage(t *testing.T) {
	// 1400 available: the second page comes back short, so pagination must
	// stop after 2 requests even with no limit.
	fake := &fakeHistoryServer{totalRecords: 1400}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := newTestClient(srv.URL, 1000)
	records, err := client.FetchHistory(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("FetchHistory failed: %v", err)
	}
	if len(records) != 1400 {
		t.Errorf("got %d records, expected 1400", len(records))
	}
	if fake.requests != 2 {
		t.Errorf("made %d requests, expected 2", fake.requests)
	}
}

func TestFetchHistoryStopsOnEmptyPage(t *testing.T) {
	// Exactly one full page available: the second page is empty.
	fake := &fakeHistoryServer{totalRecords: 1000}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := newTestClient(srv.URL, 1000)
	records, err := client.FetchHistory(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("FetchHistory failed: %v", err)
	}
	if len(records) != 1000 {
		t.Errorf("got %d records, expected 1000", len(records))
	}
	if fake.requests != 2 {
		t.Errorf("made %d requests, expected 2", fake.requests)
	}
}

func TestFetchHistoryPartialOnTransportError(t *testing.T) {
	fake := &fakeHistoryServer{totalRecords: 100000, failOnPage: 2}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := newTestClient(srv.URL, 1000)
	records, err := client.FetchHistory(context.Background(), 0, nil)
	if err == nil {
		t.Fatal("expected error from failing second page")
	}
	if len(records) != 1000 {
		t.Errorf("got %d partial records, expected 1000", len(records))
	}
}

func TestFetchHistoryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response": {"result": "error", "message": "Invalid apikey"}}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1000)
	records, err := client.FetchHistory(context.Background(), 0, nil)
	if err == nil {
		t.Fatal("expected error from API error response")
	}
	if len(records) != 0 {
		t.Errorf("got %d records, expected 0", len(records))
	}
}

func TestFetchHistorySchemaDrift(t *testing.T) {
	// A schema change must surface as a clear decode diagnostic, not a
	// silent empty result.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response": "unexpectedly-a-string"}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1000)
	_, err := client.FetchHistory(context.Background(), 0, nil)
	if err == nil {
		t.Fatal("expected decode error on schema drift")
	}
}

func TestDoRequestRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"response": {"result": "success", "data": {"recordsFiltered": 0, "recordsTotal": 0, "data": []}}}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1000)
	records, err := client.FetchHistory(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("FetchHistory failed after 429 retry: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, expected 0", len(records))
	}
	if attempts != 2 {
		t.Errorf("server saw %d attempts, expected 2 (429 then success)", attempts)
	}
}

func TestPing(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"reachable", http.StatusOK, false},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("cmd") != "arnold" {
					t.Errorf("ping used cmd %q, expected arnold", r.URL.Query().Get("cmd"))
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := newTestClient(srv.URL, 1000)
			err := client.Ping(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Ping() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
