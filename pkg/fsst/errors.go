package fsst

import "errors"

// ErrEncodingFailure marks the encode/decode failure kind of spec §7: a
// byte sequence outside what the trained table can produce. For input
// drawn from the training corpus's own alphabet this cannot happen; seeing
// it means the caller encoded with the wrong table.
var ErrEncodingFailure = errors.New("fsst: no matching code")
