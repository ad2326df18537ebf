package config

import (
	"time"

	"github.com/spf13/viper"
)

// Env holds tool-level settings taken from the environment. These are knobs
// of the invocation, not of the release itself, so they live outside the
// layered Config merge.
type Env struct {
	// Token is the registry token (CRATESHIP_TOKEN). A --token flag
	// overrides it.
	Token string

	// PublishGraceSleep is the extra delay after the registry index shows
	// the new version, to ride out propagation lag.
	// CRATESHIP_PUBLISH_GRACE_SLEEP or PUBLISH_GRACE_SLEEP, in seconds.
	PublishGraceSleep time.Duration

	// GitBin and CargoBin override the executables used.
	GitBin   string
	CargoBin string
}

// LoadEnv reads the environment once at startup.
func LoadEnv() *Env {
	v := viper.New()
	v.SetEnvPrefix("CRATESHIP")

	_ = v.BindEnv("token")
	_ = v.BindEnv("publish-grace-sleep", "CRATESHIP_PUBLISH_GRACE_SLEEP", "PUBLISH_GRACE_SLEEP")
	_ = v.BindEnv("git-bin", "CRATESHIP_GIT_BIN")
	_ = v.BindEnv("cargo-bin", "CRATESHIP_CARGO_BIN", "CARGO")

	v.SetDefault("publish-grace-sleep", 5)
	v.SetDefault("git-bin", "git")
	v.SetDefault("cargo-bin", "cargo")

	return &Env{
		Token:             v.GetString("token"),
		PublishGraceSleep: time.Duration(v.GetInt("publish-grace-sleep")) * time.Second,
		GitBin:            v.GetString("git-bin"),
		CargoBin:          v.GetString("cargo-bin"),
	}
}
