package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"relayd/pkg/logger"
)

// Abort logs a fatal startup error, writes a crash dump and exits after a
// short delay so logs have time to flush.
func Abort(contextMsg string, err error, dbPath string, delaySeconds ...int) {
	delay := 5
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	dumpPath, derr := writeCrashDump(dbPath, contextMsg, err)
	if derr != nil {
		logger.Error("crash_dump_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Error("startup_fatal_crashdump", "path", dumpPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	for i := delay; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(1 * time.Second)
	}
	os.Exit(2)
}

// writeCrashDump records the reason, environment and goroutine stacks in a
// timestamped file under <dbPath>/state/crash (or ./crash).
func writeCrashDump(dbPath, reason string, err error) (string, error) {
	crashDir := "./crash"
	if dbPath != "" {
		crashDir = filepath.Join(dbPath, "state", "crash")
	}
	if e := os.MkdirAll(crashDir, 0o700); e != nil {
		return "", fmt.Errorf("failed to create crash dir: %w", e)
	}

	dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-%d.log", time.Now().UnixNano()))
	f, ferr := os.CreateTemp(crashDir, ".crash-*.tmp")
	if ferr != nil {
		return "", fmt.Errorf("failed to create temp crash file: %w", ferr)
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "reason: %s\n", reason)
	fmt.Fprintf(f, "error: %v\n", err)
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	f.Write(buf[:n])
	f.Sync()
	f.Close()

	if err := os.Rename(tmpName, dumpPath); err != nil {
		return "", fmt.Errorf("failed to move crash dump into place: %w", err)
	}
	_ = os.Chmod(dumpPath, 0o600)
	return dumpPath, nil
}

// SetupSignalHandler installs handlers for SIGINT/SIGTERM and SIGPIPE and
// returns a cancellable context. The returned context is cancelled when any
// of the watched signals arrives.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		cancel()
	}()

	// SIGPIPE dumps goroutine stacks to aid diagnostics before exiting
	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		s := <-sigpipe
		logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
		cancel()
	}()

	return ctx, cancel
}

// ReloadSignals returns a channel that receives SIGHUP, used to trigger a
// live configuration reload.
func ReloadSignals() <-chan os.Signal {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP)
	return sigc
}
