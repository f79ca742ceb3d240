package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrRepository = errors.New("repository error")
	ErrFileAccess = errors.New("file access error")
)

func wrapRepo(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRepository, err)
}

func wrapFileAccess(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrFileAccess, err)
}
