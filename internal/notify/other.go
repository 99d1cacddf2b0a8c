//go:build !darwin && !linux

package notify

import "log/slog"

// newPlatformPrompter has nothing to offer on unsupported platforms.
func newPlatformPrompter(*slog.Logger) Prompter {
	return nil
}
