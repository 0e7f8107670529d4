// Package api contains the HTTP handlers, request/response models, and
// error mapping for the analysis API surface.
package api
