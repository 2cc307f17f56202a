package cookiestore

import "errors"

var errMissingHost = errors.New("base url has no host")
