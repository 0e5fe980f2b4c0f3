package service

import (
	"errors"

	"conventionhub/internal/microservices/http-api/repository"
)

var (
	// ErrInvalidInput is returned for malformed create or update requests
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotificationNotFound also covers records owned by someone else
	ErrNotificationNotFound = repository.ErrNotificationNotFound
)
