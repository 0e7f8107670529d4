// Package store defines the persistence interfaces of the application
// and the sentinel errors shared by their implementations. Concrete
// implementations live in internal/platform.
package store
