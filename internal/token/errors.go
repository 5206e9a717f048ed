package token

import "errors"

var ErrMalformed = errors.New("malformed token")
