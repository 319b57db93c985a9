package monitoring

import (
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, l *LogFile) string {
	t.Helper()
	rc, size, err := l.Open()
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, int64(len(b)), size)
	return string(b)
}

func TestLogFile_WriteOpenClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	l, err := OpenLogFile(path, 1, 1)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, "", readAll(t, l), "unwritten log reads as empty")

	_, err = l.Write([]byte("first line\n"))
	require.NoError(t, err)
	_, err = l.Write([]byte("second line\n"))
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line\n", readAll(t, l))

	require.NoError(t, l.Clear())
	assert.Equal(t, "", readAll(t, l))

	_, err = l.Write([]byte("after clear\n"))
	require.NoError(t, err)
	assert.Equal(t, "after clear\n", readAll(t, l))
}

func TestLogFile_ClearBeforeWrite(t *testing.T) {
	l, err := OpenLogFile(filepath.Join(t.TempDir(), "node.log"), 1, 0)
	require.NoError(t, err)
	assert.NoError(t, l.Clear())
}

func TestOpenLogFile_EmptyPath(t *testing.T) {
	_, err := OpenLogFile("", 1, 1)
	assert.Error(t, err)
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_widgets_total", Help: "widgets"})
	reg.MustRegister(c)
	c.Add(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "test_widgets_total 3"), body)
	assert.Contains(t, body, "go_goroutines")
}
