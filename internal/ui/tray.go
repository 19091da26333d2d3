package ui

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/clipstudio/clipper-agent/internal/studio"
)

const refreshInterval = 2 * time.Second

type Tray struct {
	queue  *studio.Queue
	clips  *studio.ClipStore
	logger *slog.Logger

	statusItem *systray.MenuItem
	clipsItem  *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Queue  *studio.Queue
	Clips  *studio.ClipStore
	Logger *slog.Logger
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		queue:  cfg.Queue,
		clips:  cfg.Clips,
		logger: cfg.Logger,
		onQuit: cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Clipper")
	systray.SetTooltip("Clipper Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current queue status")
	t.statusItem.Disable()

	t.clipsItem = systray.AddMenuItem("Clips: 0", "Clips produced this session")
	t.clipsItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Block new cut runs")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Clipper Agent")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

// refresh pulls the current queue state and clip count into the menu.
func (t *Tray) refresh() {
	if t.queue != nil {
		t.UpdateStatus(statusLabel(t.queue.Running(), t.queue.Paused()))
	}
	if t.clips != nil {
		t.UpdateClipsCount(len(t.clips.List()))
	}
}

// statusLabel maps queue state to the tray status text. A paused queue
// can still be mid-batch; the batch always runs to the last segment.
func statusLabel(running, paused bool) string {
	switch {
	case running:
		return "Cutting"
	case paused:
		return "Paused"
	default:
		return "Idle"
	}
}

// togglePause only blocks new runs from starting. A batch that is
// already cutting always runs to the last segment.
func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.queue == nil {
		return
	}

	if t.queue.Paused() {
		t.queue.SetPaused(false)
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: " + statusLabel(t.queue.Running(), false))
	} else {
		t.queue.SetPaused(true)
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: " + statusLabel(t.queue.Running(), true))
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateClipsCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clipsItem.SetTitle(fmt.Sprintf("Clips: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
