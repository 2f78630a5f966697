// Package logger provides structured logging for meetscribe using zerolog.
//
// Loggers are component-scoped: each subsystem (orchestrator, live, store)
// derives its own logger with WithComponent so every line carries the
// component name, and domain identifiers are attached with the Field*
// constants.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("orchestrator")
//	log.Info("stage completed", logger.Fields(logger.FieldMeetingID, id, logger.FieldStage, "diarization"))
package logger
