package tables

import (
	"context"
	"strings"
)

func ValidateTableCreate(ctx context.Context, req TableCreateRequest) []string {
	var errors []string

	if strings.TrimSpace(req.Number) == "" {
		errors = append(errors, "number is required")
	}

	if req.Capacity <= 0 {
		errors = append(errors, "capacity must be greater than 0")
	}

	return errors
}
