package service

import "errors"

var (
	ErrInvalidInput   = errors.New("service: invalid input")
	ErrSlugTaken      = errors.New("service: slug already taken")
	ErrDomainTaken    = errors.New("service: domain already registered")
	ErrEmailTaken     = errors.New("service: email already registered")
	ErrPrimaryDomain  = errors.New("service: primary domain cannot be removed")
	ErrNotFound       = errors.New("service: not found")
	ErrInvalidStatus  = errors.New("service: invalid tenant status")
	ErrPasswordPolicy = errors.New("service: password too short")

	ErrInvalidCredentials = errors.New("service: invalid email or password")
	ErrForbidden          = errors.New("service: role not allowed")
)
