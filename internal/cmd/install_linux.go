//go:build linux

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

const rulePath = "/etc/udev/rules.d/70-relook-input.rules"

func install(logger *slog.Logger, group string) error {
	if err := os.WriteFile(rulePath, []byte(udevRuleContent(group)), 0o644); err != nil {
		return err
	}

	steps := [][]string{
		{"control", "--reload-rules"},
		{"trigger", "--subsystem-match=input", "--action=change"},
	}
	for _, args := range steps {
		if err := runUdevadm(args...); err != nil {
			return err
		}
	}

	logger.Info("relook udev rule installed", "path", rulePath, "group", group)
	logger.Info("replug the pointer or log in again if access is still denied")
	return nil
}

func uninstall(logger *slog.Logger) error {
	var errs []error

	if err := os.Remove(rulePath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := runUdevadm("control", "--reload-rules"); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info("relook udev rule removed", "path", rulePath)
	return nil
}

// udevRuleContent tags pointer event nodes for the seat user; with a group
// the nodes are also made readable by it.
func udevRuleContent(group string) string {
	var b strings.Builder
	b.WriteString("# Installed by relook: raw pointer capture for relative look.\n")
	b.WriteString(`SUBSYSTEM=="input", KERNEL=="event*", ENV{ID_INPUT_MOUSE}=="1", TAG+="uaccess"`)
	if group = strings.TrimSpace(group); group != "" {
		fmt.Fprintf(&b, `, GROUP="%s", MODE="0660"`, group)
	}
	b.WriteByte('\n')
	return b.String()
}

func runUdevadm(args ...string) error {
	cmd := exec.Command("udevadm", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("udevadm %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}
