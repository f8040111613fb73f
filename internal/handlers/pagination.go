package handlers

import (
	"strconv"

	"marketplace/internal/apperr"
)

func parsePaginationParams(pageStr, limitStr string) (int64, int64, error) {
	page := int64(1)
	limit := int64(20)
	fields := map[string]string{}

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 {
			fields["page"] = "must be a positive integer"
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 {
			fields["limit"] = "must be a positive integer"
		}
		limit = l
	}

	if len(fields) > 0 {
		return 0, 0, apperr.Validation(fields)
	}
	return page, limit, nil
}
