package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/airquality.report/internal/httputil"
)

// FetchStatus asks a running node at baseURL for its status.
func FetchStatus(ctx context.Context, client httputil.HTTPClient, baseURL string) (StatusResponse, error) {
	url := strings.TrimRight(baseURL, "/") + "/api/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusResponse{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return StatusResponse{}, fmt.Errorf("get %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return StatusResponse{}, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}
