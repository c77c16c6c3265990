// Package ingress is the five-operation contract described by §4.6: it
// never touches storage directly, only the writer pool's channel and its
// own bounded queue feeding the state engine's single writer goroutine.
package ingress
