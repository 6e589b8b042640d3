package encoder

import "errors"

// ErrInvalidConfiguration is returned (wrapped) by constructors when the
// supplied configuration cannot produce a working decoder.
var ErrInvalidConfiguration = errors.New("invalid encoder configuration")
