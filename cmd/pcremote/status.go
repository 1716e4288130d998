package main

// Status is the daemon state reported over IPC, HTTP and the websocket init message.
type Status struct {
	Version     string         `json:"version"`
	MouseMode   bool           `json:"mouse_mode"`
	Listener    ListenerStatus `json:"listener"`
	Media       MediaSnapshot  `json:"media"`
	ActiveMicro *Device        `json:"active_micro,omitempty"`
	AudioMuted  *bool          `json:"audio_muted,omitempty"`
	MicroMuted  *bool          `json:"micro_muted,omitempty"`
	Binds       int            `json:"binds"`
}

type StatusReporter struct {
	mode     *ModeFlag
	listener *Listener
	media    *Media
	store    *ConfigStore
}

func NewStatusReporter(mode *ModeFlag, listener *Listener, media *Media, store *ConfigStore) *StatusReporter {
	return &StatusReporter{mode: mode, listener: listener, media: media, store: store}
}

// Status assembles a report from the caches. With queryMute set the mute tool is
// asked for both active devices, which spawns processes; a failed query leaves the
// field empty.
func (r *StatusReporter) Status(queryMute bool) Status {
	st := Status{
		Version:   version,
		MouseMode: r.mode.On(),
		Listener:  r.listener.Status(),
		Media:     r.media.Snapshot(),
		Binds:     len(r.store.Binds()),
	}
	if mic, err := r.media.ActiveMicroDevice(); err == nil {
		st.ActiveMicro = &mic
	}
	if queryMute {
		if muted, err := r.media.AudioIsMuted(); err == nil {
			st.AudioMuted = &muted
		}
		if muted, err := r.media.MicroIsMuted(); err == nil {
			st.MicroMuted = &muted
		}
	}
	return st
}
