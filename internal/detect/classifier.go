package detect

import "strings"

// Classify fuses one tick's probe outputs into a meeting verdict.
// Signals are checked cheapest and most specific first: process/window
// heuristics, then browser tab URLs (ordered by browser priority), then
// microphone usage as a last resort. The first matching rule wins.
func Classify(snap Snapshot, browsers []string) (App, bool) {
	if app, ok := classifyProcesses(snap.Processes); ok {
		return app, true
	}
	for _, browser := range browsers {
		urls, ok := snap.BrowserTabs[browser]
		if !ok {
			continue
		}
		if app, ok := ClassifyURLs(urls); ok {
			return app, true
		}
	}
	if app, ok := classifyMicConsumers(snap.MicConsumers); ok {
		return app, true
	}
	return App{}, false
}

func classifyProcesses(snap *ProcessSnapshot) (App, bool) {
	if snap == nil {
		return App{}, false
	}
	// Zoom spawns CptHost only while hosting or attending a meeting, so
	// its presence alone is conclusive. Without it the meeting-window
	// heuristic has to confirm.
	if snap.Has("CptHost") {
		return App{Kind: AppZoom}, true
	}
	if snap.Has("zoom.us") && snap.Windows.ZoomMeetingWindow {
		return App{Kind: AppZoom}, true
	}
	if snap.Has("Slack") && snap.Windows.SlackHuddleTitle {
		return App{Kind: AppSlackHuddle}, true
	}
	if snap.Has("Microsoft Teams") && snap.Windows.TeamsCallWindow {
		return App{Kind: AppMicrosoftTeams}, true
	}
	if snap.Has("Discord") && snap.Windows.DiscordVoiceTitle {
		return App{Kind: AppDiscord}, true
	}
	return App{}, false
}

// ClassifyURLs applies the URL pattern rules to a space-joined list of
// tab URLs. Precedence: Google Meet room, Zoom, Teams, Slack Huddle.
func ClassifyURLs(urls string) (App, bool) {
	if IsGoogleMeetRoom(urls) {
		return App{Kind: AppGoogleMeet}, true
	}
	if strings.Contains(urls, "zoom.us/j/") || strings.Contains(urls, "zoom.us/wc/") {
		return App{Kind: AppZoom}, true
	}
	if strings.Contains(urls, "teams.microsoft.com/l/meetup-join") || strings.Contains(urls, "teams.live.com") {
		return App{Kind: AppMicrosoftTeams}, true
	}
	if strings.Contains(urls, "app.slack.com") && strings.Contains(urls, "huddle") {
		return App{Kind: AppSlackHuddle}, true
	}
	return App{}, false
}

// IsGoogleMeetRoom distinguishes actual meeting rooms from Meet landing
// and settings pages. A room URL has a dashed room code after the
// domain (meet.google.com/abc-def-ghi) or a lookup/ path.
func IsGoogleMeetRoom(urls string) bool {
	const domain = "meet.google.com/"
	if !strings.Contains(urls, domain) {
		return false
	}
	for _, u := range strings.Fields(urls) {
		i := strings.Index(u, domain)
		if i < 0 {
			continue
		}
		rest := u[i+len(domain):]
		switch {
		case rest == "":
			continue // bare trailing slash
		case strings.HasPrefix(rest, "landing"),
			strings.HasPrefix(rest, "_meet"),
			strings.HasPrefix(rest, "?"):
			continue
		}
		if strings.HasPrefix(rest, "lookup/") {
			return true
		}
		// Room codes look like xxx-yyyy-zzz; a dash in the path segment
		// is what separates them from other Meet pages.
		segment := rest
		if j := strings.IndexAny(segment, "?/"); j >= 0 {
			segment = segment[:j]
		}
		if strings.Contains(segment, "-") {
			return true
		}
	}
	return false
}

// knownMicConsumers lists process-name substrings seen holding an audio
// input handle and the app they belong to, in match priority order.
var knownMicConsumers = []struct {
	marker string
	kind   AppKind
}{
	{"zoom", AppZoom},
	{"Slack", AppSlackHuddle},
	{"Teams", AppMicrosoftTeams},
	{"Discord", AppDiscord},
}

func classifyMicConsumers(consumers []string) (App, bool) {
	for _, entry := range knownMicConsumers {
		for _, name := range consumers {
			if strings.Contains(name, entry.marker) {
				return App{Kind: entry.kind}, true
			}
		}
	}
	return App{}, false
}
