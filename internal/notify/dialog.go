package notify

import (
	"fmt"
	"strings"
)

// dialogScript builds an AppleScript dialog with one button per action.
func dialogScript(p Prompt, timeoutSeconds int) string {
	buttons := make([]string, 0, len(p.Actions))
	for _, a := range p.Actions {
		buttons = append(buttons, fmt.Sprintf(`"%s"`, escapeAppleScript(a.Label())))
	}
	if len(buttons) == 0 {
		buttons = append(buttons, `"OK"`)
	}
	return fmt.Sprintf(`display dialog "%s" with title "%s" buttons {%s} default button %s giving up after %d`,
		escapeAppleScript(p.Message), escapeAppleScript(p.Title),
		strings.Join(buttons, ", "), buttons[len(buttons)-1], timeoutSeconds)
}

// parseDialogResult maps osascript output such as
// "button returned:Snooze, gave up:false" to an action.
func parseDialogResult(out string, actions []Action) Action {
	out = strings.TrimSpace(out)
	if strings.Contains(out, "gave up:true") {
		return ActionDismissed
	}
	for _, field := range strings.Split(out, ", ") {
		label, ok := strings.CutPrefix(field, "button returned:")
		if !ok {
			continue
		}
		for _, a := range actions {
			if a.Label() == label {
				return a
			}
		}
	}
	return ActionDismissed
}

// escapeAppleScript escapes special characters for AppleScript strings.
func escapeAppleScript(s string) string {
	// Replace backslashes and quotes
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}
