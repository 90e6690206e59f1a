package repository

import "errors"

// ErrDuplicateTrack is returned when a track id is inserted twice.
var ErrDuplicateTrack = errors.New("track already exists")
