package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alextreichler/mayajewelry/internal/auth"
	"github.com/alextreichler/mayajewelry/internal/store"
	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	*httptest.Server
	Store     store.Storage
	UploadDir string
}

type envOption func(*Server)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	uploadDir := filepath.Join(t.TempDir(), "uploads")
	images, err := store.NewDiskImages(uploadDir, 0)
	require.NoError(t, err)
	return newTestEnvWithStore(t, store.NewMemStore(images), uploadDir, opts...)
}

func newTestEnvWithStore(t *testing.T, st store.Storage, uploadDir string, opts ...envOption) *testEnv {
	t.Helper()
	verifier := auth.BcryptVerifier{Cost: bcrypt.MinCost}
	require.NoError(t, auth.SeedAdmin(context.Background(), st, verifier, "admin", "admin123"))

	sessions := auth.NewMemorySessionStore(auth.DefaultSessionOptions(false, ""), 0, securecookie.GenerateRandomKey(32))
	t.Cleanup(func() { sessions.Close() })

	srv := &Server{
		Store:     st,
		Auth:      auth.NewAuthenticator(st, verifier, sessions),
		UploadDir: uploadDir,
		StaticDir: filepath.Join(t.TempDir(), "missing"),
	}
	for _, opt := range opts {
		opt(srv)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{Server: ts, Store: st, UploadDir: uploadDir}
}

// client returns a cookie-keeping client, one per simulated browser.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path string, body io.Reader, contentType string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, e.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func (e *testEnv) login(t *testing.T, c *http.Client, username, password string) (*http.Response, string) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)
	return e.do(t, c, http.MethodPost, "/api/login", bytes.NewReader(body), "application/json")
}

func (e *testEnv) adminClient(t *testing.T) *http.Client {
	t.Helper()
	c := e.client(t)
	resp, body := e.login(t, c, "admin", "admin123")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	return c
}

type upload struct {
	name string
	data []byte
}

func validOrderFields() map[string]string {
	return map[string]string{
		"fullName":    "Ada Lovelace",
		"email":       "ada@example.com",
		"phone":       "555-0100",
		"jewelryType": "Ring",
		"description": "A silver ring with a small sapphire",
	}
}

func multipartBody(t *testing.T, fields map[string]string, file *upload) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("image", file.name)
		require.NoError(t, err)
		_, err = fw.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) submit(t *testing.T, fields map[string]string, file *upload) (*http.Response, string) {
	t.Helper()
	body, ct := multipartBody(t, fields, file)
	return e.do(t, e.client(t), http.MethodPost, "/api/orders", body, ct)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(strings.NewReader(body)).Decode(&v), body)
	return v
}
