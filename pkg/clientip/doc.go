// Package clientip determines the address of the caller behind optional
// reverse proxies and binds it, together with the User-Agent, to the
// request context for rate limiting and the system log.
package clientip
