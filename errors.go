package mdize

import "errors"

var (
	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("mdize: document not found")

	// ErrUnsupportedFormat is returned for formats no parser handles.
	ErrUnsupportedFormat = errors.New("mdize: unsupported document format")

	// ErrConversionFailed is returned when a parser fails on a supported format.
	ErrConversionFailed = errors.New("mdize: conversion failed")

	// ErrFileTooLarge is returned when a file exceeds Config.MaxFileSize.
	ErrFileTooLarge = errors.New("mdize: file too large")

	// ErrStoreClosed is returned when operating on a closed engine.
	ErrStoreClosed = errors.New("mdize: store is closed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("mdize: invalid configuration")
)
