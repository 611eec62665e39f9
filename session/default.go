// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "sync"

var defaultSession = sync.OnceValue(func() *Session {
	return New()
})

// Default returns the process-wide convenience session. Code that wants an
// isolated engine should construct its own with New.
func Default() *Session {
	return defaultSession()
}

// Trace enrolls fn for standing instrumentation on the default session and
// returns it unchanged, so it can wrap a declaration:
//
//	var handleRequest = session.Trace(handleRequestImpl)
//
// Functions without an inspectable frame are silently skipped; use
// Default().RegisterSite for those.
func Trace[F any](fn F) F {
	_ = Default().Register(fn)
	return fn
}
