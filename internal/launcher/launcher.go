// Package launcher owns the worker subprocess for one transcription session:
// it enforces the single-active-session slot, streams the worker's NDJSON
// event protocol, supports cooperative stop with forced-kill escalation, and
// archives every terminal outcome.
package launcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/history"
	"batch-transcriber/internal/notify"
	"batch-transcriber/internal/registry"
)

// SessionEventName is the application event channel the UI subscribes to.
const SessionEventName = "transcription:event"

const defaultStopTimeout = 5 * time.Second

// ErrSessionActive is returned when launching while a session is running.
// Sessions are never queued; there is exactly one admission slot.
var ErrSessionActive = errors.New("a transcription session is already running")

// SessionMismatchError reports a stop request for a non-active session id.
type SessionMismatchError struct {
	ActiveID    string
	RequestedID string
}

func (e *SessionMismatchError) Error() string {
	return fmt.Sprintf("session mismatch: active=%s, requested=%s", e.ActiveID, e.RequestedID)
}

// EventEmitter forwards application events to UI listeners.
type EventEmitter interface {
	Emit(name string, payload any)
}

// Archiver persists terminal session outcomes. Satisfied by *history.Store.
type Archiver interface {
	Archive(
		manifestPath string,
		sessionID string,
		summary *history.SummarySnapshot,
		exitCode int,
		status domain.SessionStatus,
		outcomes map[string]history.FileOutcome,
	) error
}

// activeSession is the single in-flight worker process.
type activeSession struct {
	sessionID     string
	manifestPath  string
	queuedItemIDs []string
	cmd           *exec.Cmd
	cancelled     atomic.Bool

	// done is closed by the monitor goroutine once both readers joined and
	// the process was reaped; exitCode is valid only after that.
	done     chan struct{}
	exitCode int
}

// Launcher coordinates the worker subprocess for the active session.
// Construct one per application (or per test); there is no process-wide
// shared state.
type Launcher struct {
	emitter     EventEmitter
	archiver    Archiver
	notifier    notify.Notifier
	stopTimeout time.Duration

	mu     sync.Mutex
	active *activeSession
}

// New creates a launcher wired to the given emitter, archiver, and notifier.
func New(emitter EventEmitter, archiver Archiver, notifier notify.Notifier) *Launcher {
	return &Launcher{
		emitter:     emitter,
		archiver:    archiver,
		notifier:    notifier,
		stopTimeout: defaultStopTimeout,
	}
}

// NewForTests creates a launcher with a custom stop timeout.
func NewForTests(emitter EventEmitter, archiver Archiver, notifier notify.Notifier, stopTimeout time.Duration) *Launcher {
	l := New(emitter, archiver, notifier)
	l.stopTimeout = stopTimeout
	return l
}

// ActiveSessionID returns the running session id, or "" when idle.
func (l *Launcher) ActiveSessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == nil {
		return ""
	}
	return l.active.sessionID
}

// inferModelVersion derives the worker's --model-version flag from the
// resolved model directory name.
func inferModelVersion(modelDir string) string {
	if strings.Contains(strings.ToLower(modelDir), "v2") {
		return "v2"
	}
	return "v3"
}

// commandForRuntime builds the worker command line for a resolved runtime.
func commandForRuntime(runtime domain.ProviderRuntime, manifestPath, outputDir string) (string, []string, error) {
	var program string
	var args []string

	switch runtime.Kind {
	case domain.RuntimeNativeBinary:
		program = runtime.BinaryPath
		args = []string{
			"--model-dir", runtime.ModelDir,
			"--model-version", inferModelVersion(runtime.ModelDir),
		}
	case domain.RuntimeManagedEnv:
		program = "uv"
		args = registry.ManagedCommandArgs(runtime.Package, runtime.EntryPoint)
	case domain.RuntimeRemoteAPI:
		return "", nil, fmt.Errorf("remote API providers do not support local worker launching")
	default:
		return "", nil, fmt.Errorf("unknown runtime kind: %s", runtime.Kind)
	}

	args = append(args,
		"--manifest", manifestPath,
		"--output-dir", outputDir,
	)
	return program, args, nil
}

// Launch spawns the worker for a session and streams its events until exit.
// It fails with ErrSessionActive while another session holds the admission
// slot, and with a spawn error before any session state is registered.
func (l *Launcher) Launch(
	runtime domain.ProviderRuntime,
	sessionID string,
	manifestPath string,
	outputDir string,
	queuedItemIDs []string,
	prefs notify.Preferences,
) error {
	program, args, err := commandForRuntime(runtime, manifestPath, outputDir)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.active != nil {
		l.mu.Unlock()
		return ErrSessionActive
	}

	cmd := exec.Command(program, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("capture worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("capture worker stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("launch worker: %w", err)
	}

	session := &activeSession{
		sessionID:     sessionID,
		manifestPath:  manifestPath,
		queuedItemIDs: queuedItemIDs,
		cmd:           cmd,
		done:          make(chan struct{}),
	}
	l.active = session
	l.mu.Unlock()

	l.emitter.Emit(SessionEventName, map[string]any{
		"event":         "worker_started",
		"session_id":    sessionID,
		"manifest_path": manifestPath,
		"output_dir":    outputDir,
	})

	go l.superviseWorker(session, stdout, stderr, outputDir, prefs)
	return nil
}

// superviseWorker runs the per-session stream readers, joins them, reaps the
// process, and finalizes the session unless a stop already claimed it.
func (l *Launcher) superviseWorker(
	session *activeSession,
	stdout io.ReadCloser,
	stderr io.ReadCloser,
	outputDir string,
	prefs notify.Preferences,
) {
	var latestSummary *Summary
	var fatalError string
	outcomes := make(map[string]history.FileOutcome)

	var readers sync.WaitGroup
	readers.Add(2)

	// Stdout reader: single writer of the outcome map; forwards every
	// event in stdout line order.
	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			event, ok := parseWorkerLine(scanner.Text())
			if !ok {
				continue
			}

			switch event.Kind {
			case EventRawLine:
				l.emitter.Emit(SessionEventName, map[string]any{
					"event": "worker_stdout",
					"line":  event.Line,
				})
				continue
			case EventSummary:
				summary := event.Summary
				latestSummary = &summary
			case EventFatalError:
				fatalError = event.Error
			case EventFileDone, EventFileSkipped, EventFileFailed:
				outcomes[event.File] = event.Outcome
			}
			l.emitter.Emit(SessionEventName, event.Payload)
		}
	}()

	// Stderr reader: fully decoupled so a stalled stderr pipe cannot block
	// stdout processing.
	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			l.emitter.Emit(SessionEventName, map[string]any{
				"event": "worker_stderr",
				"line":  scanner.Text(),
			})
		}
	}()

	readers.Wait()
	session.exitCode = waitExitCode(session.cmd)

	if session.cancelled.Load() {
		// The stop path archives and emits the terminal events.
		l.clearActiveIfMatches(session.sessionID)
		close(session.done)
		return
	}

	exitCode := session.exitCode
	status := domain.SessionStatusFailed
	if isSuccessExit(exitCode) {
		status = domain.SessionStatusCompleted
	}

	var snapshot *history.SummarySnapshot
	if latestSummary != nil {
		snapshot = &history.SummarySnapshot{
			Total:           latestSummary.Total,
			Processed:       latestSummary.Processed,
			Skipped:         latestSummary.Skipped,
			Failed:          latestSummary.Failed,
			DurationSeconds: latestSummary.DurationSeconds,
		}
	}
	if err := l.archiver.Archive(session.manifestPath, session.sessionID, snapshot, exitCode, status, outcomes); err != nil {
		log.Printf("history: failed to archive session %s: %v", session.sessionID, err)
	}

	l.emitter.Emit(SessionEventName, map[string]any{
		"event":      "worker_finished",
		"session_id": session.sessionID,
		"exit_code":  exitCode,
		"success":    isSuccessExit(exitCode),
	})
	l.emitter.Emit(SessionEventName, map[string]any{
		"event":      "session_summary",
		"session_id": session.sessionID,
		"exit_code":  exitCode,
		"status":     string(status),
	})

	l.maybeNotify(prefs, exitCode, latestSummary, fatalError, outputDir)
	l.clearActiveIfMatches(session.sessionID)
	close(session.done)
}

// Stop terminates the active session: graceful signal first, forced kill at
// the deadline. Stopping while idle is a no-op success; a mismatched session
// id is an error and the active session keeps running. The admission slot is
// cleared whenever termination is attempted, regardless of outcome.
func (l *Launcher) Stop(sessionID string) error {
	l.mu.Lock()
	session := l.active
	if session == nil {
		l.mu.Unlock()
		return nil
	}
	if session.sessionID != sessionID {
		active := session.sessionID
		l.mu.Unlock()
		return &SessionMismatchError{ActiveID: active, RequestedID: sessionID}
	}
	session.cancelled.Store(true)
	l.mu.Unlock()

	termErr := terminate(session.cmd)

	graceful := true
	select {
	case <-session.done:
	case <-time.After(l.stopTimeout):
		graceful = false
		if err := forceKill(session.cmd); err != nil && termErr == nil {
			termErr = err
		}
		select {
		case <-session.done:
		case <-time.After(l.stopTimeout):
		}
	}

	l.clearActiveIfMatches(sessionID)

	exitCode := -1
	select {
	case <-session.done:
		exitCode = session.exitCode
	default:
	}

	if err := l.archiver.Archive(session.manifestPath, sessionID, nil, exitCode,
		domain.SessionStatusCancelled, map[string]history.FileOutcome{}); err != nil {
		log.Printf("history: failed to archive cancelled session %s: %v", sessionID, err)
	}

	reason := "graceful"
	if !graceful {
		reason = "forced"
	}
	l.emitter.Emit(SessionEventName, map[string]any{
		"event":          "worker_stopped",
		"session_id":     sessionID,
		"reason":         reason,
		"reset_item_ids": session.queuedItemIDs,
	})
	l.emitter.Emit(SessionEventName, map[string]any{
		"event":          "session_summary",
		"session_id":     sessionID,
		"exit_code":      exitCode,
		"status":         string(domain.SessionStatusCancelled),
		"reset_item_ids": session.queuedItemIDs,
	})

	return termErr
}

// clearActiveIfMatches releases the admission slot for a session id.
func (l *Launcher) clearActiveIfMatches(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != nil && l.active.sessionID == sessionID {
		l.active = nil
	}
}

// isSuccessExit reports whether exitCode counts as a completed session.
// Exit code 2 is the worker's partial-success code and is folded into
// completed; the notification body still surfaces the failures.
func isSuccessExit(exitCode int) bool {
	return exitCode == 0 || exitCode == 2
}

// waitExitCode reaps the process and normalizes the exit code.
func waitExitCode(cmd *exec.Cmd) int {
	err := cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// terminate sends the graceful termination signal to the worker.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if goruntime.GOOS == "windows" {
		return forceKill(cmd)
	}

	err := cmd.Process.Signal(syscall.SIGTERM)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return fmt.Errorf("terminate worker: %w", err)
}

// forceKill kills the worker outright.
func forceKill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Kill()
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return fmt.Errorf("force kill worker: %w", err)
}

// formatDuration renders a summary duration for notification bodies.
func formatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "0s"
	}

	total := int64(math.Round(seconds))
	mins := total / 60
	secs := total % 60
	if mins == 0 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}

// maybeNotify dispatches a desktop notification when notifications are
// enabled, the OS permission is granted, and the matching completion or
// failure preference is set.
func (l *Launcher) maybeNotify(prefs notify.Preferences, exitCode int, summary *Summary, fatalError, outputDir string) {
	if !prefs.NotificationsEnabled {
		return
	}
	if !l.notifier.CheckPermission() {
		return
	}

	if isSuccessExit(exitCode) {
		if prefs.NotifyOnComplete {
			title, body := completionNotification(summary, outputDir)
			l.notifier.Send(title, body)
		}
		return
	}

	if prefs.NotifyOnError {
		title, body := failureNotification(exitCode, fatalError)
		l.notifier.Send(title, body)
	}
}

// completionNotification builds the title and body for a finished session.
func completionNotification(summary *Summary, outputDir string) (string, string) {
	title := "Transcription Complete"
	details := "Batch finished successfully."
	if summary != nil {
		if summary.Failed > 0 {
			title = "Transcription Complete (with failures)"
			details = fmt.Sprintf("%d succeeded, %d failed in %s.",
				summary.Processed, summary.Failed, formatDuration(summary.DurationSeconds))
		} else {
			details = fmt.Sprintf("%d file(s) transcribed in %s.",
				summary.Processed, formatDuration(summary.DurationSeconds))
		}
	}
	return title, fmt.Sprintf("%s Output: %s", details, outputDir)
}

// failureNotification builds the title and body for a failed session.
func failureNotification(exitCode int, fatalError string) (string, string) {
	detail := strings.TrimSpace(fatalError)
	if detail == "" {
		detail = fmt.Sprintf("Worker exited with code %d.", exitCode)
	}
	return "Transcription Failed", detail
}
