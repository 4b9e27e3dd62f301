package archive

import "errors"

var (
	ErrArchiveNotFound = errors.New("archive not found")
	ErrNotOwner        = errors.New("archive belongs to another user")
	ErrEmptyName       = errors.New("archive name is empty")
)
