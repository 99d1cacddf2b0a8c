package ui

import (
	"testing"
)

func TestHelpOverlay_ContentStructure(t *testing.T) {
	setupTest(t)

	help := NewHelpOverlay(createTestStyles())
	help.SetSize(100, 40)

	output := help.View()

	// Verify help contains key sections
	sections := []string{
		"Keyboard Shortcuts",
		"Global",
		"Breaks",
		"Settings",
	}

	for _, section := range sections {
		if !contains(output, section) {
			t.Errorf("help overlay should contain section: %s", section)
		}
	}

	// Verify key bindings are mentioned
	keybindings := []string{
		"Tab",
		"?",
		"q",
		"Enter",
		"Esc",
	}

	for _, key := range keybindings {
		if !contains(output, key) {
			t.Errorf("help overlay should mention key: %s", key)
		}
	}
}

func TestHelpOverlay_SmallTerminal(t *testing.T) {
	setupTest(t)

	help := NewHelpOverlay(createTestStyles())
	help.SetSize(30, 25)

	output := help.View()
	if !contains(output, "Press ? or Esc") {
		t.Errorf("help overlay should keep the close hint on a small terminal\n%s", output)
	}
}

func TestApp_HelpToggle(t *testing.T) {
	app := newTestApp(t, &fakeDaemon{status: idleStatus()})

	// Initially help should not be shown
	if app.showHelp {
		t.Error("showHelp should be false initially")
	}

	app.Update(keyPress("?"))
	if !app.showHelp {
		t.Fatal("showHelp should be true after ?")
	}

	// View should render help overlay
	view := app.View()
	if !contains(view, "Keyboard Shortcuts") {
		t.Error("view should show help overlay content")
	}

	app.Update(keyPress("esc"))
	if app.showHelp {
		t.Error("esc should close help")
	}

	// View should not show help
	view = app.View()
	if contains(view, "Keyboard Shortcuts") {
		t.Error("view should not show help after toggle off")
	}
}

func TestApp_HelpOverlayBlocksInput(t *testing.T) {
	d := &fakeDaemon{status: idleStatus()}
	app := newTestApp(t, d)

	app.Update(keyPress("?"))

	// Keys other than close are swallowed.
	if _, cmd := app.Update(keyPress("b")); cmd != nil {
		t.Error("start break should be blocked while help is shown")
	}
	if !app.showHelp {
		t.Error("help should still be shown")
	}
	if len(d.Calls()) != 0 {
		t.Errorf("daemon calls = %v, want none", d.Calls())
	}
}
