package chat

import "errors"

var ErrInvalidInput = errors.New("invalid input")
