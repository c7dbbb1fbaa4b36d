// Package ratelimit throttles form submissions per client IP.
//
// State is in memory and per process. It blunts a single client flooding
// the submit route; distributed abuse belongs to an upstream WAF or CDN.
package ratelimit
