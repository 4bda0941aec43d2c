package nafnet

import "errors"

// ErrConfig is wrapped by every construction-time configuration error.
var ErrConfig = errors.New("invalid network configuration")
