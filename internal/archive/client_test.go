package archive

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadSignsRawAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/demo/raw/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "key", r.FormValue("api_key"))
		assert.Equal(t, "1700000000", r.FormValue("timestamp"))
		assert.Equal(t, "exports", r.FormValue("folder"))
		want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=exports&public_id=e-1.pdf&timestamp=1700000000secret")))
		assert.Equal(t, want, r.FormValue("signature"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "report.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.3", string(data))

		_, _ = io.WriteString(w, `{"public_id":"exports/e-1.pdf","secure_url":"https://res.example/e-1.pdf","resource_type":"raw","bytes":8}`)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "exports")
	c.BaseURL = srv.URL + "/v1_1"
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	res, err := c.Upload(context.Background(), []byte("%PDF-1.3"), "report.pdf", "e-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://res.example/e-1.pdf", res.SecureURL)
	assert.Equal(t, "raw", res.ResourceType)
}

func TestUploadReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "")
	c.BaseURL = srv.URL

	_, err := c.Upload(context.Background(), []byte("x"), "a.pdf", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
