// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

package tautulli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/tomtom215/plexmap/internal/logging"
	models "github.com/tomtom215/plexmap/internal/models/tautulli"
	"github.com/tomtom215/plexmap/internal/progress"
)

// GetHistory retrieves one page of playback history from Tautulli,
// ordered by start time descending.
//
// NOTE: history responses are decoded with encoding/json rather than
// go-json: go-json issue #340 produces "expected comma after object
// element" errors on large get_history payloads (500+ records).
func (c *Client) GetHistory(ctx context.Context, start, length int) (*models.History, error) {
	params := url.Values{}
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("length", fmt.Sprintf("%d", length))
	params.Set("order_column", "started")
	params.Set("order_dir", "desc")
	// Disable session grouping to get individual playback records.
	// Without this, Tautulli groups consecutive plays of the same content
	// by the same user.
	params.Set("grouping", "0")

	resp, err := c.doRequestWithRateLimit(ctx, c.apiURL("get_history", params))
	if err != nil {
		return nil, fmt.Errorf("failed to make history request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("history request failed with status %d: %s", resp.StatusCode, string(body))
	}

	// History responses can be several MB; read fully so a decode failure
	// can report context instead of a bare stream error.
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read history response body: %w", err)
	}

	var history models.History
	if err := json.Unmarshal(bodyBytes, &history); err != nil {
		maxLen := 2000
		if len(bodyBytes) < maxLen {
			maxLen = len(bodyBytes)
		}
		return nil, fmt.Errorf("failed to decode history response (showing first %d chars): %w\nJSON: %s", maxLen, err, string(bodyBytes[:maxLen]))
	}

	if history.Response.Result != "success" {
		msg := "unknown error"
		if history.Response.Message != nil {
			msg = *history.Response.Message
		}
		return nil, fmt.Errorf("history request failed: %s", msg)
	}

	return &history, nil
}

// FetchHistory retrieves playback history pages until the source is
// exhausted or limit records have been accumulated (limit 0 = fetch all).
//
// Pagination stops when a page returns fewer records than requested or no
// records at all. A transport or schema failure mid-pagination is
// recoverable to partial: the records accumulated so far are returned
// together with the error, and the caller decides whether partial data is
// usable.
//
// Progress events are published to sink after every page, including the
// recordsFiltered total when Tautulli reports one.
func (c *Client) FetchHistory(ctx context.Context, limit int, sink progress.Sink) ([]models.HistoryRecord, error) {
	if sink == nil {
		sink = progress.Nop()
	}

	var records []models.HistoryRecord
	start := 0
	total := -1

	for {
		length := c.pageSize
		if limit > 0 {
			if remaining := limit - len(records); remaining < length {
				length = remaining
			}
		}

		page, err := c.GetHistory(ctx, start, length)
		if err != nil {
			return records, fmt.Errorf("history pagination stopped after %d records: %w", len(records), err)
		}

		fetched := page.Response.Data.Data
		if t := page.Response.Data.RecordsFiltered; t > 0 {
			total = t
		}
		records = append(records, fetched...)

		sink.Publish(progress.Event{Stage: progress.StageHistory, Done: len(records), Total: total})
		logging.Debug().Int("page_start", start).Int("page_records", len(fetched)).Int("accumulated", len(records)).Msg("Fetched history page")

		// Short or empty page means the source is exhausted.
		if len(fetched) == 0 || len(fetched) < length {
			break
		}
		if limit > 0 && len(records) >= limit {
			records = records[:limit]
			break
		}

		start += len(fetched)
	}

	return records, nil
}
