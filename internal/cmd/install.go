package cmd

import "log/slog"

// Install manages the udev rule that lets the logged-in user read and grab
// evdev nodes without root.
type Install struct {
	Remove bool   `help:"Remove the rule instead of installing it"`
	Group  string `help:"Also grant access to this group (default: only the seat user)" env:"RELOOK_INPUT_GROUP"`
}

// Run is called by Kong when the install command is executed.
func (i *Install) Run(logger *slog.Logger) error {
	if i.Remove {
		return uninstall(logger)
	}
	return install(logger, i.Group)
}
