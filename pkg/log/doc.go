/*
Package log provides structured logging for the indexer using zerolog.

A single global Logger is configured once via Init, and every subsystem
(event ingress, writer pool, state engine, brief submitter) derives a
component-tagged child logger from it with WithComponent. JSON output is
used in production; console output is easier to read in development.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	wl := log.WithComponent("writerpool")
	wl.Info().Int("worker_id", 3).Msg("worker started")

Never log account data bytes or transaction signatures at Info or above;
pubkeys are safe to log hex-encoded via WithPubkey, account payloads are
not.
*/
package log
