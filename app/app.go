package app

import "runtime"

const (
	Name = "memoryful"

	// Version is stamped into every request via the app headers.
	Version = "0.9.0"

	Platform = runtime.GOOS

	// filenames
	LogFileName      = "memoryful.log"
	ConfigFileName   = "config.yaml"
	SettingsFileName = "session.json"
)
