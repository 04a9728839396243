// Package ratelimit paces calls against an API that reports its own budget.
//
// Each endpoint class (archive search, follower lookup, timeline lookup) owns
// one EndpointLimiter. The server's x-rate-limit-* response headers are fed
// back through Update; Acquire then decides whether the next call may go out:
//
//   - remaining > 0: proceed, except that classes configured with a minimum
//     spacing wait until that much time has passed since the last response.
//   - remaining == 0: sleep until the advertised reset plus a fixed margin
//     (two seconds by default) to absorb clock skew between us and the server.
//
// Time is read through a Clock so tests can drive the limiter with a manual
// clock instead of sleeping.
//
//	lim := ratelimit.New(ratelimit.ClassFollower)
//	for {
//	    if err := lim.Acquire(ctx); err != nil {
//	        return err
//	    }
//	    resp := doRequest()
//	    lim.UpdateFromHeaders(resp.Header)
//	}
package ratelimit
