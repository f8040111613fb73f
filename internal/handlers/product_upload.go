package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace/internal/apperr"
	"marketplace/internal/service"
	"marketplace/internal/storage"
)

/*
=======================
  INPUT STRUCT
=======================
*/

// multipartProductInput is a product form plus an optional image.
type multipartProductInput struct {
	Product service.CreateProductInput
	Image   *multipart.FileHeader
}

/*
=======================
  PARSER
=======================
*/

func parseMultipartProductRequest(c *gin.Context) (multipartProductInput, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return multipartProductInput{}, apperr.Validation(map[string]string{"body": "must be multipart form data"})
	}

	input := multipartProductInput{}
	fields := map[string]string{}

	// ---- STRING FIELDS ----

	input.Product.Name = strings.TrimSpace(c.PostForm("name"))
	input.Product.Description = strings.TrimSpace(c.PostForm("description"))
	input.Product.CategoryID = strings.TrimSpace(c.PostForm("categoryId"))

	// ---- NUMBER FIELDS ----

	if value, ok := c.GetPostForm("price"); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			fields["price"] = "must be a number"
		}
		input.Product.Price = parsed
	}

	// ---- IMAGE FILE ----

	file, err := c.FormFile("image")
	switch {
	case err == nil:
		input.Image = file
	case !errors.Is(err, http.ErrMissingFile):
		fields["image"] = "could not be read"
	}

	if len(fields) > 0 {
		return multipartProductInput{}, apperr.Validation(fields)
	}
	return input, nil
}

// imageError turns a storage rejection into a field error.
func imageError(err error) error {
	if errors.Is(err, storage.ErrInvalidImage) {
		return apperr.Validation(map[string]string{
			"image": strings.TrimPrefix(err.Error(), storage.ErrInvalidImage.Error()+": "),
		})
	}
	return err
}
