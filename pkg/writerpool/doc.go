/*
Package writerpool implements the relational writer pool described in the
indexer design: a bounded channel of WorkItem values drained by a
configurable number of worker goroutines, each with its own relational
session, applying last-writer-wins upserts. See pool.go for the startup
barrier and cancellation protocol.
*/
package writerpool
