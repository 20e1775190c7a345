package storage

import "errors"

var ErrNotFound = errors.New("document not found")
var ErrAlreadyExists = errors.New("document already exists")
var ErrInvalidMutation = errors.New("invalid mutation")
var ErrCacheMiss = errors.New("cache miss")
var ErrIdExhausted = errors.New("could not allocate a free post id")
