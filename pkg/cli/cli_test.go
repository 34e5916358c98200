package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagSetParse(t *testing.T) {
	newSet := func() (*FlagSet, *string, *bool, *int, *[]string) {
		fs := NewFlagSet("mcc")
		var out string
		var verbose bool
		var jobs int
		var libs []string
		fs.String(&out, "output", "o", "a.s", "Place the output into <file>.", "file")
		fs.Bool(&verbose, "verbose", "v", false, "Verbose output.")
		fs.Int(&jobs, "jobs", "j", 4, "Parallel jobs.", "n")
		fs.Special(&libs, "l", "Library.", "lib")
		return fs, &out, &verbose, &jobs, &libs
	}

	t.Run("long, short, attached and prefixed forms", func(t *testing.T) {
		fs, out, verbose, jobs, libs := newSet()
		err := fs.Parse([]string{"--output=x.s", "-v", "-j8", "-lm", "in.c", "--", "-not-a-flag"})
		require.NoError(t, err)
		assert.Equal(t, "x.s", *out)
		assert.True(t, *verbose)
		assert.Equal(t, 8, *jobs)
		assert.Equal(t, []string{"m"}, *libs)
		assert.Equal(t, []string{"in.c", "-not-a-flag"}, fs.Args())
		assert.True(t, fs.Changed("output"))
		assert.False(t, fs.Changed("help"))
	})

	t.Run("separate value for a shorthand", func(t *testing.T) {
		fs, out, _, _, _ := newSet()
		require.NoError(t, fs.Parse([]string{"-o", "y.s"}))
		assert.Equal(t, "y.s", *out)
	})

	t.Run("missing value and unknown flags are errors", func(t *testing.T) {
		fs, _, _, _, _ := newSet()
		assert.Error(t, fs.Parse([]string{"-o"}))
		assert.Error(t, fs.Parse([]string{"--nope"}))
		assert.Error(t, fs.Parse([]string{"-z"}))
		assert.Error(t, fs.Parse([]string{"--jobs=many"}))
	})

	t.Run("group toggles", func(t *testing.T) {
		fs := NewFlagSet("mcc")
		on, off := false, false
		entries := []FlagGroupEntry{{Name: "narrowing", Prefix: "W", Usage: "Warn.", Enabled: &on, Disabled: &off}}
		fs.AddFlagGroup("Warning Flags", "", "warning flag", "", entries)

		require.NoError(t, fs.Parse([]string{"-Wnarrowing"}))
		assert.True(t, on)
		assert.True(t, fs.Changed("Wnarrowing"))

		require.NoError(t, fs.Parse([]string{"-Wno-narrowing"}))
		assert.True(t, off)
	})
}

func TestAppRun(t *testing.T) {
	t.Run("help page lists options and groups", func(t *testing.T) {
		var stdout bytes.Buffer
		app := NewApp("mcc")
		app.Synopsis = "[options] <input.c> ..."
		app.Description = "Semantic analyzer."
		app.Stdout = &stdout
		var out string
		app.FlagSet.String(&out, "output", "o", "a.s", "Place the output into <file>.", "file")
		on, off := true, false
		app.FlagSet.AddFlagGroup("Feature Flags", "", "feature flag", "Available Features:", []FlagGroupEntry{
			{Name: "strict-rank", Prefix: "F", Usage: "Strict.", Enabled: &on, Disabled: &off},
		})

		err := app.Run([]string{"--help"})
		assert.True(t, errors.Is(err, ErrHelp))
		page := stdout.String()
		assert.Contains(t, page, "-o, --output <file>")
		assert.Contains(t, page, "|a.s|")
		assert.Contains(t, page, "Feature Flags")
		assert.Contains(t, page, "strict-rank")
		assert.Contains(t, page, "|x|")
	})

	t.Run("action receives positional arguments", func(t *testing.T) {
		app := NewApp("mcc")
		var got []string
		app.Action = func(args []string) error { got = args; return nil }
		require.NoError(t, app.Run([]string{"a.c", "b.c"}))
		assert.Equal(t, []string{"a.c", "b.c"}, got)
	})

	t.Run("parse errors print usage", func(t *testing.T) {
		var stderr bytes.Buffer
		app := NewApp("mcc")
		app.Synopsis = "[options] <input.c> ..."
		app.Stderr = &stderr
		assert.Error(t, app.Run([]string{"--bogus"}))
		assert.Contains(t, stderr.String(), "Usage: mcc")
	})
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"aaa bbb", "ccc"}, wrapText("aaa bbb ccc", 7))
	assert.Empty(t, wrapText("   ", 10))
}
