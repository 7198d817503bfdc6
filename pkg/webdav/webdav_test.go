package webdav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("jpeg"), 0o644))
	srv := httptest.NewServer(Handler(dir))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/photo.jpg")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "jpeg", string(body))

	req, err := http.NewRequest("PROPFIND", srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Depth", "1")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusMultiStatus, res.StatusCode)
	assert.True(t, strings.Contains(string(body), "photo.jpg"))
}

func TestShareToggle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, 0, t.TempDir())

	assert.False(t, s.Running())
	s.Start()
	s.Start()
	assert.True(t, s.Running())
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}
