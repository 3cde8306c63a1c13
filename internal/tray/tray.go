// Package tray provides a system tray menu showing the analysis status.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/hueassay/internal/session"
)

// Tray represents the system tray application.
type Tray struct {
	onOpen   func()
	onCancel func()
	onQuit   func()
	status   string
	running  bool
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuCancel *systray.MenuItem
}

// New creates a new Tray instance showing an idle session.
func New() *Tray {
	return &Tray{
		status: StatusLine(session.Status{State: session.StateIdle}),
	}
}

// OnOpen sets the callback for the "Open hueassay" menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnCancel sets the callback for the "Cancel analysis" menu item.
func (t *Tray) OnCancel(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCancel = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("hueassay")
	systray.SetTooltip("hueassay colorimetric video analysis")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Analysis status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuCancel = systray.AddMenuItem("Cancel analysis", "Stop the running analysis")
	if !t.running {
		t.menuCancel.Disable()
	}
	t.mu.Unlock()

	menuOpen := systray.AddMenuItem("Open hueassay...", "Open the analysis page in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit hueassay")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuCancel.ClickedCh:
				t.call(func() func() { return t.onCancel })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// call runs the callback selected under the read lock, outside the lock.
func (t *Tray) call(pick func() func()) {
	t.mu.RLock()
	callback := pick()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// Update shows a session status in the menu.
func (t *Tray) Update(st session.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = StatusLine(st)
	t.running = st.State == session.StateRunning

	if t.menuStatus != nil {
		t.menuStatus.SetTitle(t.status)
	}
	if t.menuCancel != nil {
		if t.running {
			t.menuCancel.Enable()
		} else {
			t.menuCancel.Disable()
		}
	}
}

// Status returns the text currently shown in the status item.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// StatusLine renders a one-line menu title for a session status.
func StatusLine(st session.Status) string {
	switch st.State {
	case session.StateRunning:
		return fmt.Sprintf("Analyzing… %.0f%% (%d samples)", st.Progress.Fraction*100, st.Progress.Samples)
	case session.StateCompleted:
		return fmt.Sprintf("Done: %d samples", st.Samples)
	case session.StateCompletedEmpty:
		return "Done: no usable frames"
	case session.StateFailed:
		return fmt.Sprintf("Failed after %d samples", st.Samples)
	}
	if !st.HasVideo {
		return "Idle: no video"
	}
	return "Idle"
}
