package retrieval

import "errors"

var ErrInvalidInput = errors.New("invalid input")
