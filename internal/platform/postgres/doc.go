// Package postgres provides PostgreSQL-backed implementations of the
// store interfaces, accessed through database/sql with the pgx driver.
package postgres
