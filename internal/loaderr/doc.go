// Package loaderr defines the structured error returned by every stage of
// loading a module. Each error carries a Kind, and errors.Is matches on Kind
// alone, so callers can test for a class of failure through any amount of
// wrapping:
//
//	if errors.Is(err, loaderr.ErrBuildFailure) { ... }
package loaderr
