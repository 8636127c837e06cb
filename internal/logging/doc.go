// Package logging provides structured logging for cadencehost.
//
// This package wraps Go's log/slog to provide JSON-formatted logs tagged
// with lifecycle context. Every restart of the language-service pipeline
// gets a new generation number, and tagging log lines with it makes it
// possible to tell which generation produced a given process, adapter or
// failure after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("service ready", "attempts", 3)
//
// # Context Propagation
//
//	lg := logger.WithComponent("lifecycle").WithGeneration(2).WithNetwork("testnet")
//	lg.Info("client ready", "adapter_id", id)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"client ready","component":"lifecycle","generation":2,"network":"testnet","adapter_id":"..."}
//
// # Log Rotation
//
//	logger, err := logging.NewLoggerWithRotation(dir, "INFO", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	})
//
// Rotated files are named host.log.1, host.log.2, ... with .1 the most recent.
//
// # Reading Logs
//
// [ReadLogs] and [FilterLogs] back the `cadencehost logs` command:
//
//	entries, _ := logging.ReadLogs(dir)
//	entries = logging.FilterLogs(entries, logging.LogFilter{Generation: 2, Level: "WARN"})
//	_ = logging.WriteText(os.Stdout, entries)
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] to capture it.
package logging
