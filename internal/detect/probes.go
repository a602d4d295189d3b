package detect

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// probeTimeout bounds every external query so a hung tool cannot stall
// the poll loop for more than one tick.
const probeTimeout = 3 * time.Second

// runner executes an external command and returns its stdout. Probes take
// it as a dependency so tests can substitute canned output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Output()
}

// WindowSignals are per-app window heuristics gathered alongside the
// process table. Mere presence of Slack, Teams or Discord says nothing
// about being in a call; these disambiguate.
type WindowSignals struct {
	ZoomMeetingWindow bool
	SlackHuddleTitle  bool
	TeamsCallWindow   bool
	DiscordVoiceTitle bool
}

// ProcessSnapshot is one tick's view of running processes plus the
// window heuristics for apps whose presence alone is ambiguous.
type ProcessSnapshot struct {
	Table   string
	Windows WindowSignals
}

// Has reports whether a process name substring appears in the table.
func (s *ProcessSnapshot) Has(name string) bool {
	return strings.Contains(s.Table, name)
}

// Snapshot carries the outputs of all probes for one polling tick.
// A nil Processes means the process probe failed this tick; a browser
// missing from BrowserTabs was not running or not queryable; a nil
// MicConsumers means the microphone probe failed.
type Snapshot struct {
	Processes    *ProcessSnapshot
	BrowserTabs  map[string]string
	MicConsumers []string
}

// ProcessProbe lists OS processes and evaluates window heuristics.
type ProcessProbe interface {
	Snapshot(ctx context.Context) (*ProcessSnapshot, error)
}

// BrowserProbe returns the space-joined tab URLs of a running browser.
// ok is false when the browser is not running or cannot be queried;
// that is a normal outcome, not an error.
type BrowserProbe interface {
	TabURLs(ctx context.Context, browser string) (urls string, ok bool)
}

// MicrophoneProbe reports which processes hold an open audio-input
// handle, or nil when the query fails.
type MicrophoneProbe interface {
	Consumers(ctx context.Context) []string
}

// Probes bundles the three signal sources polled each tick.
type Probes struct {
	Process    ProcessProbe
	Browser    BrowserProbe
	Microphone MicrophoneProbe
	Browsers   []string // fixed priority order for the browser signal
}

// NewSystemProbes builds probes backed by the host OS. On platforms
// without scripting support the browser and window probes degrade to
// reporting no signal.
func NewSystemProbes(browsers []string) *Probes {
	if len(browsers) == 0 {
		browsers = DefaultBrowsers()
	}
	return &Probes{
		Process:    &systemProcessProbe{run: execRunner},
		Browser:    &osascriptBrowserProbe{run: execRunner},
		Microphone: &lsofMicrophoneProbe{run: execRunner},
		Browsers:   browsers,
	}
}

// DefaultBrowsers returns the browser priority order used when the
// config does not override it.
func DefaultBrowsers() []string {
	return []string{"Google Chrome", "Safari"}
}

// Collect runs all probes for one tick. Individual probe failures are
// logged at debug level and absorbed; the returned snapshot simply
// lacks that signal.
func (p *Probes) Collect(ctx context.Context) Snapshot {
	var snap Snapshot

	procs, err := p.Process.Snapshot(ctx)
	if err != nil {
		slog.Debug("process probe failed", "error", err)
	} else {
		snap.Processes = procs
	}

	for _, browser := range p.Browsers {
		if urls, ok := p.Browser.TabURLs(ctx, browser); ok {
			if snap.BrowserTabs == nil {
				snap.BrowserTabs = make(map[string]string, len(p.Browsers))
			}
			snap.BrowserTabs[browser] = urls
		}
	}

	snap.MicConsumers = p.Microphone.Consumers(ctx)
	return snap
}

// systemProcessProbe lists processes with ps and evaluates window
// heuristics through the System Events scripting bridge.
type systemProcessProbe struct {
	run runner
}

func (p *systemProcessProbe) Snapshot(ctx context.Context) (*ProcessSnapshot, error) {
	out, err := p.run(ctx, "ps", "aux")
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	table := string(out)

	snap := &ProcessSnapshot{Table: table}
	if runtime.GOOS != "darwin" {
		return snap, nil
	}

	// Window heuristics are only worth the osascript round trip when the
	// owning process is actually running.
	if strings.Contains(table, "zoom.us") {
		snap.Windows.ZoomMeetingWindow = p.windowCountAboveOne(ctx, "zoom.us")
	}
	if strings.Contains(table, "Slack") {
		snap.Windows.SlackHuddleTitle = p.windowTitlesContain(ctx, "Slack", "huddle", "Huddle")
	}
	if strings.Contains(table, "Microsoft Teams") {
		snap.Windows.TeamsCallWindow = p.windowCountAboveOne(ctx, "Microsoft Teams")
	}
	if strings.Contains(table, "Discord") {
		snap.Windows.DiscordVoiceTitle = p.windowTitlesContain(ctx, "Discord", "Voice Connected", "Screen Share")
	}
	return snap, nil
}

// windowCountAboveOne reports whether an app has more than one window,
// the heuristic Zoom and Teams use for an active call.
func (p *systemProcessProbe) windowCountAboveOne(ctx context.Context, app string) bool {
	script := fmt.Sprintf(`
		tell application "System Events"
			if application %[1]q is running then
				tell application process %[1]q
					return count of windows > 1
				end tell
			end if
		end tell
		return false
	`, app)
	out, err := p.run(ctx, "osascript", "-e", script)
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "true")
}

// windowTitlesContain reports whether any window title of an app
// contains one of the markers.
func (p *systemProcessProbe) windowTitlesContain(ctx context.Context, app string, markers ...string) bool {
	script := fmt.Sprintf(`
		tell application "System Events"
			if application %[1]q is running then
				tell application process %[1]q
					set windowTitles to title of windows
					return windowTitles as string
				end tell
			end if
		end tell
		return ""
	`, app)
	out, err := p.run(ctx, "osascript", "-e", script)
	if err != nil {
		return false
	}
	titles := string(out)
	for _, m := range markers {
		if strings.Contains(titles, m) {
			return true
		}
	}
	return false
}

// osascriptBrowserProbe enumerates tab URLs through AppleScript. Other
// platforms report the browser as not queryable.
type osascriptBrowserProbe struct {
	run runner
}

func (p *osascriptBrowserProbe) TabURLs(ctx context.Context, browser string) (string, bool) {
	if runtime.GOOS != "darwin" {
		return "", false
	}
	script := fmt.Sprintf(`
		tell application "System Events"
			if exists (processes where name is %[1]q) then
				tell application %[1]q
					set allUrls to ""
					repeat with w in windows
						repeat with t in tabs of w
							set allUrls to allUrls & (URL of t) & " "
						end repeat
					end repeat
					return allUrls
				end tell
			end if
		end tell
		return ""
	`, browser)
	out, err := p.run(ctx, "osascript", "-e", script)
	if err != nil {
		return "", false
	}
	urls := strings.TrimSpace(string(out))
	if urls == "" {
		return "", false
	}
	return urls, true
}

// lsofMicrophoneProbe inspects open audio device handles to infer which
// processes are using the microphone. Weakest of the three signals.
type lsofMicrophoneProbe struct {
	run runner
}

func (p *lsofMicrophoneProbe) Consumers(ctx context.Context) []string {
	out, err := p.run(ctx, "lsof", "+c", "0", "/dev")
	if err != nil {
		return nil
	}
	var consumers []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "audio") && !strings.Contains(lower, "mic") && !strings.Contains(lower, "sound") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		if !seen[name] {
			seen[name] = true
			consumers = append(consumers, name)
		}
	}
	return consumers
}
