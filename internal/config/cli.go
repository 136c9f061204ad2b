// Package config declares the relook command line.
package config

import "github.com/mirrorctl/relook/internal/cmd"

// Log holds the logging flags shared by all commands.
type Log struct {
	Level   string `help:"Log level: trace, debug, info, warn, error" default:"info" enum:"trace,debug,info,warn,error" env:"RELOOK_LOG_LEVEL"`
	File    string `help:"Also write logs to this file" env:"RELOOK_LOG_FILE"`
	RawFile string `help:"Write hex dumps of assist and control traffic to this file" env:"RELOOK_LOG_RAW_FILE"`
	Format  string `help:"Log format: auto, text or json" default:"auto" enum:"auto,text,json" env:"RELOOK_LOG_FORMAT"`
}

// CLI is the root command.
type CLI struct {
	ConfigFile string `name:"config" help:"Path to a JSON, YAML or TOML file with flag defaults" type:"path" env:"RELOOK_CONFIG"`
	Log        Log    `embed:"" prefix:"log."`

	Run     cmd.Run           `cmd:"" help:"Run relative look and orientation tracking against a control link"`
	Send    cmd.Send          `cmd:"" help:"Send assist packets to a running session"`
	Probe   cmd.Probe         `cmd:"" help:"Probe the device orientation once"`
	Sink    cmd.Sink          `cmd:"" help:"Listen as a device and log the control messages received"`
	Config  cmd.ConfigCommand `cmd:"" help:"Configuration helpers"`
	Install cmd.Install       `cmd:"" help:"Install or remove the udev rule that grants access to input devices (Linux)"`
}
