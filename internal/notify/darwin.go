//go:build darwin

package notify

import (
	"context"
	"log/slog"
	"os/exec"

	"breaktime/internal/logging"
)

// dialogTimeoutSeconds closes an unanswered dialog.
const dialogTimeoutSeconds = 600

// darwinPrompter shows prompts as osascript dialogs.
type darwinPrompter struct {
	t      *tracker
	logger *slog.Logger
}

// newPlatformPrompter creates the macOS prompter.
func newPlatformPrompter(logger *slog.Logger) Prompter {
	return &darwinPrompter{t: newTracker(), logger: logging.Component(logger, "notify")}
}

// IsSupported returns true if osascript is available.
func (p *darwinPrompter) IsSupported() bool {
	_, err := exec.LookPath("osascript")
	return err == nil
}

// Prompt opens the dialog in the background.
func (p *darwinPrompter) Prompt(ctx context.Context, pr Prompt) (uint32, error) {
	id := p.t.nextID()
	p.t.add(id, pr.Tag)

	script := dialogScript(pr, dialogTimeoutSeconds)
	go func() {
		out, err := exec.Command("osascript", "-e", script).Output()
		if err != nil {
			// Cancel button or closed dialog.
			p.logger.Debug("dialog closed", "id", id, "error", err)
			p.t.resolve(id, ActionDismissed)
			return
		}
		p.t.resolve(id, parseDialogResult(string(out), pr.Actions))
	}()
	if pr.Sound {
		_ = exec.CommandContext(ctx, "osascript", "-e", `beep`).Start()
	}
	return id, nil
}

// Responses delivers answers.
func (p *darwinPrompter) Responses() <-chan Response {
	return p.t.out
}

// Close stops publishing answers.
func (p *darwinPrompter) Close() error {
	p.t.close()
	return nil
}

