// Package cli defines the dynmod command tree: flag parsing, input
// validation and exit codes, translated into calls on package app.
package cli
