package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"modernc.org/libqbe"

	"github.com/xplshn/mcc/pkg/cli"
	"github.com/xplshn/mcc/pkg/types"
)

type Feature int

const (
	FeatStrictRank Feature = iota
	FeatWidenLongFloat
	FeatFloatCond
	FeatBoolLiterals
	FeatCompoundAssign
	FeatDirectives
	FeatCount
)

type Warning int

const (
	WarnNarrowing Warning = iota
	WarnConstIndex
	WarnShadow
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features       map[Feature]Info
	Warnings       map[Warning]Info
	FeatureMap     map[string]Feature
	WarningMap     map[string]Warning
	TargetArch     string
	QbeTarget      string
	WordSize       int
	WordType       string
	StackAlignment int
}

var ErrUnknownFlag = errors.New("unknown flag")

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
	}

	features := map[Feature]Info{
		FeatStrictRank:     {"strict-rank", true, "Require a subscript for every dimension of an array."},
		FeatWidenLongFloat: {"widen-long-float", false, "Promote mixed 'long' and 'float' arithmetic to 'double'."},
		FeatFloatCond:      {"float-cond", false, "Accept floating-point expressions as conditions."},
		FeatBoolLiterals:   {"bool-literals", true, "Recognize 'true' and 'false' as integer constants."},
		FeatCompoundAssign: {"compound-assign", true, "Recognize compound assignment operators like '+='."},
		FeatDirectives:     {"directives", true, "Honor `// [mcc]:` directives in source files."},
	}

	warnings := map[Warning]Info{
		WarnNarrowing:  {"narrowing", false, "Warn on implicit conversions to a lower-ranked type."},
		WarnConstIndex: {"const-index", false, "Warn when a constant subscript is outside the declared dimension."},
		WarnShadow:     {"shadow", false, "Warn when a declaration hides one from an enclosing scope."},
		WarnExtra:      {"extra", true, "Enable extra miscellaneous warnings (e.g., unknown directive flags)."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// Clone returns an independent copy, so that directives in one file do not
// leak into the analysis of another.
func (c *Config) Clone() *Config {
	out := *c
	out.Features = make(map[Feature]Info, len(c.Features))
	out.Warnings = make(map[Warning]Info, len(c.Warnings))
	for k, v := range c.Features {
		out.Features[k] = v
	}
	for k, v := range c.Warnings {
		out.Warnings[k] = v
	}
	return &out
}

// SetTarget configures the backend for a specific architecture and QBE target.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) error {
	if qbeTarget == "" {
		qbeTarget = libqbe.DefaultTarget(goos, goarch)
	}
	c.QbeTarget = qbeTarget
	c.TargetArch = goarch

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.WordType, c.StackAlignment = 8, "l", 16
	case "arm", "rv32":
		c.WordSize, c.WordType, c.StackAlignment = 4, "w", 8
	default:
		c.WordSize, c.WordType, c.StackAlignment = 8, "l", 16
		return fmt.Errorf("unrecognized or unsupported QBE target '%s', defaulting to 64-bit properties", c.QbeTarget)
	}
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// WarningName is the -W spelling of wt.
func (c *Config) WarningName(wt Warning) string { return c.Warnings[wt].Name }

// Rules derives the typing rules from the enabled features.
func (c *Config) Rules() types.Rules {
	return types.Rules{
		StrictRank:     c.IsFeatureEnabled(FeatStrictRank),
		WidenLongFloat: c.IsFeatureEnabled(FeatWidenLongFloat),
	}
}

func (c *Config) applyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		return fmt.Errorf("%w '%s'", ErrUnknownFlag, flag)
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
			return nil
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
			return nil
		}
	}
	return fmt.Errorf("%w '%s'", ErrUnknownFlag, flag)
}

// ProcessFlags applies -W and -F flags, handling -Wall before the others
// so that specific flags can override it.
func (c *Config) ProcessFlags(visitFlag func(fn func(name string))) error {
	var errs []error
	visitFlag(func(name string) {
		if name == "Wall" || name == "Wno-all" {
			errs = append(errs, c.applyFlag("-"+name))
		}
	})
	visitFlag(func(name string) {
		if name != "Wall" && name != "Wno-all" {
			errs = append(errs, c.applyFlag("-"+name))
		}
	})
	return errors.Join(errs...)
}

// ProcessDirectiveFlags applies the flags of a `// [mcc]:` directive.
func (c *Config) ProcessDirectiveFlags(flagStr string) error {
	var errs []error
	for _, flag := range strings.Fields(flagStr) {
		errs = append(errs, c.applyFlag(flag))
	}
	return errors.Join(errs...)
}

// SetupFlagGroups registers the -W and -F flag groups on fs. The returned
// entries are indexed by Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warningFlags, featureFlags []cli.FlagGroupEntry) {
	warningFlags = make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := info.Enabled, false
		warningFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled,
		}
	}
	featureFlags = make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		enabled, disabled := info.Enabled, false
		featureFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled,
		}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings.", "warning flag", "Available Warning Flags:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific language features.", "feature flag", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies the flags given on the command line back into c.
// Flags left at their default do not override earlier settings.
func (c *Config) ApplyFlagGroups(fs *cli.FlagSet, warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if fs.Changed(entry.Prefix + entry.Name) {
			c.SetWarning(Warning(i), *entry.Enabled)
		}
		if fs.Changed(entry.Prefix+"no-"+entry.Name) && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if fs.Changed(entry.Prefix + entry.Name) {
			c.SetFeature(Feature(i), *entry.Enabled)
		}
		if fs.Changed(entry.Prefix+"no-"+entry.Name) && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

type fileConfig struct {
	Features map[string]bool `yaml:"features"`
	Warnings map[string]bool `yaml:"warnings"`
	Target   string          `yaml:"target"`
}

// LoadFile applies the settings of a YAML project file:
//
//	features:
//	  strict-rank: false
//	warnings:
//	  narrowing: true
//	target: amd64_sysv
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file '%s': %w", path, err)
	}
	return c.LoadYAML(data)
}

func (c *Config) LoadYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var errs []error
	for name, enabled := range fc.Features {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enabled)
		} else {
			errs = append(errs, fmt.Errorf("%w 'F%s'", ErrUnknownFlag, name))
		}
	}
	for name, enabled := range fc.Warnings {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enabled)
		} else {
			errs = append(errs, fmt.Errorf("%w 'W%s'", ErrUnknownFlag, name))
		}
	}
	if fc.Target != "" {
		c.QbeTarget = fc.Target
	}
	return errors.Join(errs...)
}
