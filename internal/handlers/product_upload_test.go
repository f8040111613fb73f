package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/apperr"
)

func multipartContext(t *testing.T, fill func(w *multipart.Writer)) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fill(writer)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/vendor/products", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestParseMultipartProductRequestReadsFields(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		_ = w.WriteField("name", "  Lamp ")
		_ = w.WriteField("price", "12.5")
		_ = w.WriteField("categoryId", "abc")
		part, _ := w.CreateFormFile("image", "lamp.png")
		_, _ = part.Write([]byte("png"))
	})

	parsed, err := parseMultipartProductRequest(c)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", parsed.Product.Name)
	assert.Equal(t, 12.5, parsed.Product.Price)
	assert.Equal(t, "abc", parsed.Product.CategoryID)
	require.NotNil(t, parsed.Image)
	assert.Equal(t, "lamp.png", parsed.Image.Filename)
}

func TestParseMultipartProductRequestRejectsBadPrice(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		_ = w.WriteField("name", "Lamp")
		_ = w.WriteField("price", "twelve")
	})

	_, err := parseMultipartProductRequest(c)
	appErr := apperr.From(err)
	require.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "must be a number", appErr.Fields["price"])
}

func TestParseMultipartProductRequestImageIsOptional(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		_ = w.WriteField("name", "Lamp")
	})

	parsed, err := parseMultipartProductRequest(c)
	require.NoError(t, err)
	assert.Nil(t, parsed.Image)
}
