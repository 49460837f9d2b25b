// Package log provides the application's slog setup.
//
// Every log line passes through SecureHandler, which masks session cookies,
// the session key and tokens. The crawler logs cookie names and domains while
// restoring and saving sessions, and the values must never reach a terminal
// or a log file that may be shared.
//
// # Usage
//
//	runLog, err := log.OpenRunLog(os.Stderr, cfg.LogDir, cfg.Verbose, time.Now())
//	if err != nil {
//	    return err
//	}
//	defer runLog.Close()
//	slog.SetDefault(runLog.Logger)
//
// The console shows warnings unless --verbose is set. The per-run file under
// the state directory records Info and above.
package log
