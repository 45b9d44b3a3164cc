//go:build !gocv

package vision

import "errors"

// Default returns the backend compiled into this binary.
func Default() Backend {
	return NewNative()
}

func newGoCV() (Backend, error) {
	return nil, errors.New("gocv build tag is not enabled")
}
