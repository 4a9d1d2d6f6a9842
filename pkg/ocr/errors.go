package ocr

import "errors"

// ErrNoText is returned when every pass came back without readable text.
var ErrNoText = errors.New("no text recognised")
