// Package session correlates a browser session with a remote calendar connection.
//
// A Linkage is the pair (user id, connected-account handle) issued by the
// connection registry after the consent flow. Both halves travel in HttpOnly
// cookies; a request that is missing either half is treated as not connected
// and every pipeline short-circuits with ErrNotConnected before any network
// call is made.
package session
