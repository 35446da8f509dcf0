package apperrors

import "errors"

var (
	ErrCatalogUnavailable = errors.New("schema catalog unavailable")
	ErrPostGISMissing     = errors.New("postgis extension not installed")
	ErrPlanTooExpensive   = errors.New("query plan exceeds cost ceiling")
)
