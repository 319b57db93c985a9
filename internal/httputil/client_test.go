package httputil

import (
	"errors"
	"io"
	"net/http"
	"testing"
)

func TestMockHTTPClient_ReplaysInOrder(t *testing.T) {
	mock := NewMockHTTPClient(
		MockResponse{StatusCode: http.StatusOK, Body: `{"seq":1}`},
		MockResponse{Error: errors.New("connection refused")},
	)

	req, _ := http.NewRequest(http.MethodGet, "http://node.local/api/status", nil)
	resp, err := mock.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != `{"seq":1}` {
		t.Errorf("body = %q", body)
	}

	if _, err := mock.Do(req); err == nil {
		t.Error("expected the queued error")
	}

	resp, err = mock.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("default reply = %v, %v", resp, err)
	}

	if n := len(mock.Requests()); n != 3 {
		t.Errorf("recorded %d requests, want 3", n)
	}
}
