package repository

import "errors"

// ErrUnsupportedDriver indicates the configured database driver is unknown.
var ErrUnsupportedDriver = errors.New("unsupported database driver")
