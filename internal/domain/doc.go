// Package domain defines the core business entities of the analysis
// pipeline: users, analysis jobs, analysis results, and the per-user
// cache entries that track them.
package domain
