package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// writeTree creates files under a temp dir and returns the dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for key, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(key))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func storeTree(t *testing.T) string {
	return writeTree(t, map[string]string{
		"a/1.txt":       "one",
		"a/2.txt":       "two",
		"b/x.txt":       "ex",
		"b/c/y.txt":     "why",
		".cache/z.txt":  "hidden",
		"b/c/notes.md":  "# notes",
		"b/c/d/e/f.txt": "deep",
	})
}

// resetFlags restores every flag of c to its default after the test.
func resetFlags(t *testing.T, c *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	t.Cleanup(func() {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	})
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t, rootCmd)
	for _, c := range rootCmd.Commands() {
		resetFlags(t, c)
	}
	t.Cleanup(func() {
		// Drop anything a --config file loaded.
		viper.SetConfigType("yaml")
		_ = viper.ReadConfig(strings.NewReader(""))
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
