// Package validator checks structs tagged with `validate`. Besides the stock
// go-playground rules it knows notblank and nolink, which guard producer
// supplied notification texts.
package validator
