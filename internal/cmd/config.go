package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mirrorctl/relook/internal/configpaths"
	"github.com/mirrorctl/relook/tuning"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init   ConfigInit   `cmd:"" help:"Generate a flag defaults file for a command"`
	Tuning ConfigTuning `cmd:"" help:"Generate a tuning store (userdata.ini) template"`
}

// templated lists the commands a defaults file can be generated for.
var templated = map[string]reflect.Type{
	"run":   reflect.TypeOf(Run{}),
	"send":  reflect.TypeOf(Send{}),
	"probe": reflect.TypeOf(Probe{}),
	"sink":  reflect.TypeOf(Sink{}),
}

// ConfigInit scaffolds a flag defaults file for a specific command.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"run,send,probe,sink"`
	Format  string `help:"Output format" enum:"json,yaml,yml,toml" default:"json"`
	Output  string `help:"Destination file path (default: <command>.<format> in the user config directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run writes the defaults of every flag of the command, keyed the way the
// configuration loaders look them up.
func (c *ConfigInit) Run(logger *slog.Logger) error {
	format := normalizeFormat(c.Format)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", c.Format)
	}
	t, ok := templated[c.Command]
	if !ok {
		return fmt.Errorf("unknown command %q", c.Command)
	}
	root := DefaultsOf(t)

	dest := c.Output
	if dest == "" {
		p, err := configpaths.DefaultNamedConfigPath(c.Command, format)
		if err != nil {
			return err
		}
		dest = p
	}
	if err := checkDest(dest, c.Force); err != nil {
		return err
	}

	var data []byte
	var err error
	switch format {
	case "json":
		data, err = json.MarshalIndent(root, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(root)
	case "toml":
		data, err = toml.Marshal(root)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	logger.Info("config template written", "command", c.Command, "path", dest)
	return nil
}

// ConfigTuning writes a tuning store with the built-in defaults.
type ConfigTuning struct {
	Serial string `help:"Also add a section overriding the relative-look keys for this device"`
	Output string `help:"Destination file path (default: the resolved tuning store location)"`
	Force  bool   `help:"Overwrite if the file already exists"`
}

func (c *ConfigTuning) Run(logger *slog.Logger) error {
	dest := c.Output
	if dest == "" {
		dest = configpaths.DefaultTuningPath()
	}
	if err := checkDest(dest, c.Force); err != nil {
		return err
	}
	if err := tuning.WriteTemplate(dest, strings.TrimSpace(c.Serial)); err != nil {
		return err
	}
	logger.Info("tuning store written", "path", dest)
	return nil
}

func checkDest(dest string, force bool) error {
	if !force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	return configpaths.EnsureDir(dest)
}

func normalizeFormat(f string) string {
	switch strings.ToLower(f) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

// DefaultsOf maps the flags of a kong command struct to their defaults.
// Embedded structs with a prefix become nested tables; keys are the flag
// names in snake case.
func DefaultsOf(t reflect.Type) map[string]any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]any{}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("kong") == "-" || f.Tag.Get("help") == "-" {
			continue
		}
		if _, ok := f.Tag.Lookup("arg"); ok {
			continue
		}
		if _, ok := f.Tag.Lookup("cmd"); ok {
			continue
		}

		if _, ok := f.Tag.Lookup("embed"); ok {
			sub := DefaultsOf(f.Type)
			if name := strings.TrimSuffix(f.Tag.Get("prefix"), "."); name != "" {
				out[snakeCase(name)] = sub
			} else {
				for k, v := range sub {
					out[k] = v
				}
			}
			continue
		}

		name := f.Tag.Get("name")
		if name == "" {
			name = f.Name
		}
		if v := defaultValue(f.Type, f.Tag.Get("default")); v != nil {
			out[snakeCase(name)] = v
		}
	}
	return out
}

func defaultValue(t reflect.Type, def string) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == reflect.TypeOf(time.Duration(0)) {
		if def == "" {
			return "0s"
		}
		return def
	}
	switch t.Kind() {
	case reflect.String:
		return def
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, _ := strconv.ParseInt(def, 10, 64)
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, _ := strconv.ParseUint(def, 10, 64)
		return n
	case reflect.Float32, reflect.Float64:
		v, _ := strconv.ParseFloat(def, 64)
		return v
	case reflect.Struct:
		return DefaultsOf(t)
	default:
		return nil
	}
}

// snakeCase turns a Go field or kong flag name into the key the
// configuration resolvers accept: "DialTimeout" and "dial-timeout" both
// become "dial_timeout".
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 && runes[i-1] != '-' && runes[i-1] != '_' &&
				(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
