package session

import "errors"

var ErrCorrupt = errors.New("stored session data is unreadable")
