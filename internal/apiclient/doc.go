// Package apiclient talks to a running lala daemon over its HTTP API.
//
// The CLI uses it for every command that touches daemon state. Errors
// returned by the daemon surface as *Error values carrying the HTTP status
// and the operator hint; IsUnavailable distinguishes "daemon not running"
// from request failures.
package apiclient
