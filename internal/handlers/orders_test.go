package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/alextreichler/mayajewelry/internal/models"
	"github.com/alextreichler/mayajewelry/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitOrderWithoutImage(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.submit(t, validOrderFields(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	order := decode[models.Order](t, body)
	assert.NotZero(t, order.ID)
	assert.Equal(t, "Ada Lovelace", order.FullName)
	assert.Equal(t, "ada@example.com", order.Email)
	assert.Equal(t, "555-0100", order.Phone)
	assert.Equal(t, "Ring", order.JewelryType)
	assert.Equal(t, "A silver ring with a small sapphire", order.Description)
	assert.Nil(t, order.ImagePath)
	assert.False(t, order.SubmittedAt.IsZero())
	assert.Contains(t, body, `"imagePath":null`)

	stored, err := env.Store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, order.FullName, stored.FullName)
}

func TestSubmitOrderWithImage(t *testing.T) {
	env := newTestEnv(t)
	img := pngBytes(t)

	resp, body := env.submit(t, validOrderFields(), &upload{name: "sketch.png", data: img})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	order := decode[models.Order](t, body)
	require.NotNil(t, order.ImagePath)
	assert.True(t, strings.HasPrefix(*order.ImagePath, "/uploads/"))
	assert.True(t, strings.HasSuffix(*order.ImagePath, ".png"))

	resp, served := env.do(t, env.client(t), http.MethodGet, *order.ImagePath, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, img, []byte(served))
}

func TestSubmitOrderTrimsFields(t *testing.T) {
	env := newTestEnv(t)
	fields := validOrderFields()
	fields["fullName"] = "  Ada Lovelace  "

	resp, body := env.submit(t, fields, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "Ada Lovelace", decode[models.Order](t, body).FullName)
}

func TestSubmitOrderShortDescription(t *testing.T) {
	env := newTestEnv(t)
	fields := validOrderFields()
	fields["description"] = "hi"

	resp, body := env.submit(t, fields, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	got := decode[messageResponse](t, body)
	assert.Equal(t, "Description must be at least 10 characters long", got.Message)
	assert.Equal(t, got.Message, got.Errors["description"])

	orders, err := env.Store.GetOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestSubmitOrderValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		field   string
		message string
	}{
		{"missing name", func(f map[string]string) { delete(f, "fullName") }, "fullName", "Full name is required"},
		{"whitespace name", func(f map[string]string) { f["fullName"] = "   " }, "fullName", "Full name is required"},
		{"bad email", func(f map[string]string) { f["email"] = "not-an-email" }, "email", "Please enter a valid email address"},
		{"short phone", func(f map[string]string) { f["phone"] = "123" }, "phone", "Phone number must be at least 7 characters long"},
		{"no type", func(f map[string]string) { delete(f, "jewelryType") }, "jewelryType", "Please select a jewelry type"},
		{"unknown type", func(f map[string]string) { f["jewelryType"] = "Crown" }, "jewelryType", "Jewelry type must be one of Ring, Necklace, Bracelet, Earrings, Other"},
		{"lowercase type", func(f map[string]string) { f["jewelryType"] = "ring" }, "jewelryType", "Jewelry type must be one of Ring, Necklace, Bracelet, Earrings, Other"},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validOrderFields()
			tt.mutate(fields)
			resp, body := env.submit(t, fields, nil)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
			got := decode[messageResponse](t, body)
			assert.Equal(t, tt.message, got.Errors[tt.field])
		})
	}

	orders, err := env.Store.GetOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestSubmitOrderInvalidImageIsNotSaved(t *testing.T) {
	env := newTestEnv(t)
	fields := validOrderFields()
	fields["description"] = "hi"

	resp, _ := env.submit(t, fields, &upload{name: "ring.png", data: pngBytes(t)})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	entries, err := os.ReadDir(env.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitOrderRejectsNonImage(t *testing.T) {
	env := newTestEnv(t)

	for name, data := range map[string][]byte{
		"notes.png": []byte("just some text pretending to be a picture"),
		"logo.svg":  []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`),
	} {
		resp, body := env.submit(t, validOrderFields(), &upload{name: name, data: data})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		assert.JSONEq(t, `{"message":"Only image files are allowed"}`, body)
	}

	entries, err := os.ReadDir(env.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitOrderImageTooLarge(t *testing.T) {
	env := newTestEnv(t, func(s *Server) { s.MaxUploadBytes = 1024 })

	big := append(pngBytes(t), bytes.Repeat([]byte{0}, 4096)...)
	resp, body := env.submit(t, validOrderFields(), &upload{name: "huge.png", data: big})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Image must be 1MB or smaller"}`, body)
}

func TestSubmitOrderSameFileNameTwice(t *testing.T) {
	env := newTestEnv(t)
	img := pngBytes(t)

	_, first := env.submit(t, validOrderFields(), &upload{name: "ring.png", data: img})
	_, second := env.submit(t, validOrderFields(), &upload{name: "ring.png", data: img})
	a := decode[models.Order](t, first)
	b := decode[models.Order](t, second)
	require.NotNil(t, a.ImagePath)
	require.NotNil(t, b.ImagePath)
	assert.NotEqual(t, *a.ImagePath, *b.ImagePath)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSubmitOrderURLEncoded(t *testing.T) {
	env := newTestEnv(t)
	form := url.Values{}
	for k, v := range validOrderFields() {
		form.Set(k, v)
	}

	resp, body := env.do(t, env.client(t), http.MethodPost, "/api/orders",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Nil(t, decode[models.Order](t, body).ImagePath)
}

func TestSubmitOrderJSON(t *testing.T) {
	env := newTestEnv(t)
	fields := validOrderFields()
	fields["imagePath"] = "/uploads/someone-elses.png"
	payload, err := json.Marshal(fields)
	require.NoError(t, err)

	resp, body := env.do(t, env.client(t), http.MethodPost, "/api/orders",
		bytes.NewReader(payload), "application/json; charset=utf-8")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	order := decode[models.Order](t, body)
	assert.Equal(t, "Ada Lovelace", order.FullName)
	assert.Equal(t, "Ring", order.JewelryType)
	assert.Nil(t, order.ImagePath, "clients cannot point an order at an existing file")
}

func TestSubmitOrderJSONValidation(t *testing.T) {
	env := newTestEnv(t)
	fields := validOrderFields()
	fields["description"] = "hi"
	payload, err := json.Marshal(fields)
	require.NoError(t, err)

	resp, body := env.do(t, env.client(t), http.MethodPost, "/api/orders", bytes.NewReader(payload), "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	got := decode[messageResponse](t, body)
	assert.Equal(t, "Description must be at least 10 characters long", got.Message)
	assert.Len(t, got.Errors, 1)

	resp, body = env.do(t, env.client(t), http.MethodPost, "/api/orders", strings.NewReader("{broken"), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Invalid request body"}`, body)

	orders, err := env.Store.GetOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// failingOrders accepts images but refuses to store orders.
type failingOrders struct {
	*store.MemStore
}

func (failingOrders) CreateOrder(context.Context, models.OrderInput) (*models.Order, error) {
	return nil, errors.New("disk full")
}

func TestSubmitOrderRemovesImageWhenCreateFails(t *testing.T) {
	uploadDir := t.TempDir()
	images, err := store.NewDiskImages(uploadDir, 0)
	require.NoError(t, err)
	env := newTestEnvWithStore(t, failingOrders{store.NewMemStore(images)}, uploadDir)

	resp, body := env.submit(t, validOrderFields(), &upload{name: "ring.png", data: pngBytes(t)})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Failed to create order"}`, body)
	assert.NotContains(t, body, "disk full")

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
