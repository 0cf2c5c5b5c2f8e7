package database

import "errors"

// ErrDuplicateShortID is returned by inserts that lost a short id race.
var ErrDuplicateShortID = errors.New("short id already in use")

var ErrDuplicateID = errors.New("record id already in use")
