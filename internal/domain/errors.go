package domain

import "errors"

var ErrNotFound = errors.New("not found")

var (
	ErrInvalidRange        = errors.New("invalid range")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)
