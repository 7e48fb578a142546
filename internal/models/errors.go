package models

import "errors"

var (
	// ErrInput: the chunk source is missing, unreadable or not a supported document.
	ErrInput = errors.New("input error")

	// ErrNoChunks: the source parsed to zero chunks.
	ErrNoChunks = errors.New("no chunks found")

	ErrModelLoad  = errors.New("model load error")
	ErrModel      = errors.New("model error")
	ErrIndexBuild = errors.New("index build error")

	// ErrIndexMissing is recoverable: the dataset was never indexed.
	ErrIndexMissing = errors.New("index missing")

	// ErrAlignment: chunk and vector counts of a dataset disagree.
	ErrAlignment = errors.New("chunk/vector alignment mismatch")

	ErrInvalidRequest = errors.New("invalid request")
)
