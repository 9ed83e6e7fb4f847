package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/kclejeune/dirsweep/internal/config"
)

const defaultConfigTemplate = `# dirsweep configuration
#
# Paths may start with ~/ and use shell variables such as $HOME or
# ${MEDIA_ROOT:-/srv/media}. Relative paths are resolved against the
# directory of this file.

# Directories to sweep. Only directories below a root are removed, never the
# root itself.
roots = [%s]

[exclude]
# Directories kept exactly as listed (case-insensitive).
exact_paths = []
# Any directory whose path contains one of these strings (case-insensitive)
# is kept, along with everything above it.
path_fragments = [".git", "RECYCLE", "System"]

[logging]
# directory = "~/.local/state/dirsweep/logs"
# file_name = '{{ now.Format "2006-01-02_15-04-05" }}_{{ hostname }}.log'
keep = 10
console_level = "info"   # debug, info, warn or error
file_level = "debug"
console_format = "auto"  # auto, text or json
`

func cfgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"cfg"},
		Short:   "Create or inspect the config file",
		GroupID: "debug",
	}

	cmd.AddCommand(cfgInitCmd())
	cmd.AddCommand(cfgShowCmd())
	return cmd
}

func cfgInitCmd() *cobra.Command {
	var force bool
	var roots []string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a config file with defaults",
		Long: `Create a new dirsweep config file with commented defaults at the --config
path, or ~/.config/dirsweep/config.toml. Roots passed with --root are written
into the file; otherwise roots is left empty and must be filled in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultConfigPath()
			}
			path, err := config.ExpandPath(path)
			if err != nil {
				return err
			}
			return writeDefaultConfig(cmd.ErrOrStderr(), path, roots, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	cmd.Flags().StringArrayVar(&roots, "root", nil, "scan root to write into the config, repeatable")
	return cmd
}

func writeDefaultConfig(w io.Writer, path string, roots []string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	quoted := make([]string, len(roots))
	for i, r := range roots {
		quoted[i] = strconv.Quote(r)
	}
	content := fmt.Sprintf(defaultConfigTemplate, strings.Join(quoted, ", "))

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(w, "created %s\n", path)
	if len(roots) == 0 {
		fmt.Fprintln(w, "add at least one directory to roots before running a sweep")
	}
	return nil
}

func cfgShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Long: `Load and validate the config file and print it with every path expanded
and made absolute, as a sweep would use it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return withExitCode(codeConfig, fmt.Errorf("loading config: %w", err))
			}
			return showConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

func showConfig(w io.Writer, cfg *config.Config) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	fmt.Fprintf(w, "# %s\n", path)
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
