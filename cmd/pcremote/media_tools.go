package main

import "strconv"

// MediaTools is the narrow port over the external audio tools. Every call except
// ListDevices reports its result as a process exit code.
type MediaTools interface {
	// ListDevices returns the device table as CSV.
	ListDevices() ([]byte, error)
	// SetDefault makes name the default device for every role.
	SetDefault(name string) (int, error)
	// ToggleMute flips the mute state of name.
	ToggleMute(name string) (int, error)
	// GetPercent exits with the device volume percent times ten.
	GetPercent(name string) (int, error)
	// GetMute exits with 1 when name is muted.
	GetMute(name string) (int, error)
	// SetSystemVolume sets the master volume on a 0..65535 scale.
	SetSystemVolume(level int) (int, error)
}

// nirsoftTools drives SoundVolumeView, svcl and nircmd.
type nirsoftTools struct {
	runner ToolRunner

	nircmd string
	svv    string
	svcl   string
}

func newNirsoftTools(runner ToolRunner, cfg MediaConfig) *nirsoftTools {
	return &nirsoftTools{
		runner: runner,
		nircmd: cfg.NircmdPath,
		svv:    cfg.SoundVolumeViewPath,
		svcl:   cfg.SvclPath,
	}
}

func (t *nirsoftTools) ListDevices() ([]byte, error) {
	return t.runner.Output(t.svv, "/scomma")
}

func (t *nirsoftTools) SetDefault(name string) (int, error) {
	return t.runner.Run(t.svv, "/SetDefault", name, "all")
}

func (t *nirsoftTools) ToggleMute(name string) (int, error) {
	return t.runner.Run(t.svv, "/Switch", name)
}

func (t *nirsoftTools) GetPercent(name string) (int, error) {
	return t.runner.Run(t.svcl, "/GetPercent", name)
}

func (t *nirsoftTools) GetMute(name string) (int, error) {
	return t.runner.Run(t.svcl, "/GetMute", name)
}

func (t *nirsoftTools) SetSystemVolume(level int) (int, error) {
	return t.runner.Run(t.nircmd, "setsysvolume", strconv.Itoa(level))
}
