package services

import "errors"

// Service-layer errors
var (
	// Scan errors
	ErrJobNotFound    = errors.New("scan job not found")
	ErrScanInProgress = errors.New("a scan is already in progress")

	// Query errors
	ErrNoSourcesIngested = errors.New("no survey sources have been ingested")

	ErrInvalidInput = errors.New("invalid input")
)
