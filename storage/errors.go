package storage

import "errors"

var (
	ErrInvalidBalance = errors.New("invalid balance")

	// Singleton reads before initialization; genesis must write these first.
	ErrConfigNotFound   = errors.New("config not found")
	ErrVammListNotFound = errors.New("vamm list not found")

	ErrInvalidAddress   = errors.New("invalid address")
	ErrVammListTooLarge = errors.New("vamm list too large")

	ErrInvalidConfigData   = errors.New("invalid config data")
	ErrInvalidVammListData = errors.New("invalid vamm list data")
	ErrInvalidPositionData = errors.New("invalid position data")

	ErrUnauthorized = errors.New("unauthorized")
)
