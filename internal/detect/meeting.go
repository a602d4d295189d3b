package detect

import "time"

// AppKind identifies a known meeting application.
type AppKind string

const (
	AppZoom           AppKind = "zoom"
	AppGoogleMeet     AppKind = "google-meet"
	AppMicrosoftTeams AppKind = "microsoft-teams"
	AppSlackHuddle    AppKind = "slack-huddle"
	AppDiscord        AppKind = "discord"
	AppUnknown        AppKind = "unknown"
)

// App is the meeting application attributed to a detection. Name is only
// populated for AppUnknown, carrying whatever hint the probe produced.
type App struct {
	Kind AppKind `json:"kind"`
	Name string  `json:"name,omitempty"`
}

func (a App) String() string {
	if a.Kind == AppUnknown && a.Name != "" {
		return "unknown (" + a.Name + ")"
	}
	return string(a.Kind)
}

// MeetingState is the detector's view of the world at one instant.
// The three fields are set and cleared together: InMeeting is true
// exactly when App and StartedAt are non-nil.
type MeetingState struct {
	InMeeting bool       `json:"in_meeting"`
	App       *App       `json:"app,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}
