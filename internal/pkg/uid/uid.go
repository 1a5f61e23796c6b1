// Package uid generates identifiers used for sendings and correlation ids.
package uid

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}
