package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/agentgraph/internal/config"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/present"
)

func newConfigCmd(rt *runtime) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Allow opening settings even when config parsing failed.
			return editSettings(cmd, &rt.cfg)
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open settings in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return editSettings(cmd, &rt.cfg)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset settings to defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Allow reset even when config parsing failed.
			return resetSettings(cmd, &rt.cfg)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireConfig(); err != nil {
				return err
			}
			return yaml.NewEncoder(stdout(cmd)).Encode(rt.cfg.Settings)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:       "dirs [config|data]",
		Short:     "Print config and data directories",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"config", "data"},
		RunE: func(cmd *cobra.Command, args []string) error {
			printDirs(stdout(cmd), &rt.cfg, args)
			return nil
		},
	})

	return configCmd
}

func editSettings(cmd *cobra.Command, cfg *config.Config) error {
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	appName := filepath.Base(os.Args[0])
	c, err := editor.Cmd(appName, cfg.SettingsPath)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not edit your settings file."}
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return errs.Error{Err: err, Reason: fmt.Sprintf(
			"Missing %s.",
			present.StderrStyles().InlineCode.Render("$EDITOR"),
		)}
	}

	fmt.Fprintln(stderr(cmd), "Wrote config file to:", cfg.SettingsPath)
	return nil
}

func resetSettings(cmd *cobra.Command, cfg *config.Config) error {
	inputFile, err := os.Open(cfg.SettingsPath)
	if err != nil {
		return errs.Error{Err: err, Reason: "Couldn't open config file."}
	}
	defer inputFile.Close() //nolint:errcheck

	outputFile, err := os.Create(cfg.SettingsPath + ".bak")
	if err != nil {
		return errs.Error{Err: err, Reason: "Couldn't backup config file."}
	}
	defer outputFile.Close() //nolint:errcheck

	if _, err := io.Copy(outputFile, inputFile); err != nil {
		return errs.Error{Err: err, Reason: "Couldn't write config file."}
	}
	if err := os.Remove(cfg.SettingsPath); err != nil {
		return errs.Error{Err: err, Reason: "Couldn't remove config file."}
	}
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return errs.Error{Err: err, Reason: "Couldn't write new config file."}
	}

	out := stderr(cmd)
	fmt.Fprintln(out, "\nSettings restored to defaults!")
	fmt.Fprintf(out,
		"\n  %s %s\n\n",
		present.StderrStyles().Comment.Render("Your old settings have been saved to:"),
		present.StderrStyles().Link.Render(cfg.SettingsPath+".bak"),
	)
	return nil
}

func printDirs(w io.Writer, cfg *config.Config, args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "config":
			fmt.Fprintln(w, filepath.Dir(cfg.SettingsPath))
			return
		case "data":
			fmt.Fprintln(w, cfg.DataDir)
			return
		}
	}

	fmt.Fprintf(w, "Configuration: %s\n", filepath.Dir(cfg.SettingsPath))
	//nolint:mnd
	fmt.Fprintf(w, "%*sData: %s\n", 9, " ", cfg.DataDir)
}
