// Package notify delivers desktop notifications for finished sessions.
package notify

import (
	"os/exec"
	goruntime "runtime"
	"strings"
)

// Preferences gates which session outcomes produce a notification.
type Preferences struct {
	NotificationsEnabled bool
	NotifyOnComplete     bool
	NotifyOnError        bool
}

// DefaultPreferences enables all notifications.
func DefaultPreferences() Preferences {
	return Preferences{
		NotificationsEnabled: true,
		NotifyOnComplete:     true,
		NotifyOnError:        true,
	}
}

// Notifier is the OS notification boundary. Injectable so the launcher can
// be tested without touching OS notification APIs.
type Notifier interface {
	CheckPermission() bool
	RequestPermission() bool
	Send(title, body string) bool
}

const checkPermissionScript = `
import Dispatch
import UserNotifications

let semaphore = DispatchSemaphore(value: 0)
var granted = false

UNUserNotificationCenter.current().getNotificationSettings { settings in
    switch settings.authorizationStatus {
    case .authorized, .provisional, .ephemeral:
        granted = true
    default:
        granted = false
    }
    semaphore.signal()
}

_ = semaphore.wait(timeout: .now() + 2)
print(granted ? "granted" : "denied")
`

const requestPermissionScript = `
import Dispatch
import UserNotifications

let semaphore = DispatchSemaphore(value: 0)
var granted = false

UNUserNotificationCenter.current().requestAuthorization(options: [.alert, .badge, .sound]) { ok, _ in
    granted = ok
    semaphore.signal()
}

_ = semaphore.wait(timeout: .now() + 5)
print(granted ? "granted" : "denied")
`

// DesktopNotifier sends notifications through platform tooling. On macOS it
// shells out to osascript and the UserNotifications framework; elsewhere
// permission checks pass and delivery is a no-op.
type DesktopNotifier struct{}

// NewDesktopNotifier creates the production notifier.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{}
}

// parsePermissionOutput interprets the permission script's stdout.
func parsePermissionOutput(output []byte) bool {
	return strings.EqualFold(strings.TrimSpace(string(output)), "granted")
}

// runPermissionScript executes a Swift permission snippet and parses the verdict.
func runPermissionScript(script string) bool {
	output, err := exec.Command("/usr/bin/swift", "-e", script).Output()
	if err != nil {
		return false
	}
	return parsePermissionOutput(output)
}

// CheckPermission reports whether notification delivery is authorized.
func (n *DesktopNotifier) CheckPermission() bool {
	if goruntime.GOOS != "darwin" {
		return true
	}
	return runPermissionScript(checkPermissionScript)
}

// RequestPermission asks the OS for notification authorization.
func (n *DesktopNotifier) RequestPermission() bool {
	if goruntime.GOOS != "darwin" {
		return true
	}
	return runPermissionScript(requestPermissionScript)
}

// escapeAppleScript sanitizes text embedded in an AppleScript literal.
func escapeAppleScript(input string) string {
	escaped := strings.ReplaceAll(input, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return strings.ReplaceAll(escaped, "\n", " ")
}

// Send displays a notification and reports delivery success.
func (n *DesktopNotifier) Send(title, body string) bool {
	if goruntime.GOOS != "darwin" {
		return false
	}

	script := `display notification "` + escapeAppleScript(body) +
		`" with title "` + escapeAppleScript(title) + `"`
	return exec.Command("/usr/bin/osascript", "-e", script).Run() == nil
}
