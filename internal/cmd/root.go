package cmd

import (
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	glamour "github.com/charmbracelet/glamour/styles"
	"github.com/spf13/cobra"

	"github.com/dotcommander/agentgraph/internal/config"
	"github.com/dotcommander/agentgraph/internal/ctxlog"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/present"
)

type runtime struct {
	build  BuildInfo
	cfg    config.Config
	cfgErr error
	logger *slog.Logger
}

// NewRootCmd constructs the Cobra root command.
func NewRootCmd(build BuildInfo, cfg config.Config, cfgErr error) *cobra.Command {
	// XXX: unset error styles in Glamour dark and light styles.
	glamour.DarkStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)
	glamour.LightStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)

	rt := &runtime{build: normalizeBuildInfo(build), cfg: cfg, cfgErr: cfgErr}

	rootCmd := &cobra.Command{
		Use:           "agentgraph",
		Short:         "Run agent workflow blueprints as streaming graphs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       randomExample(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := ctxlog.New(cmd.ErrOrStderr(), rt.cfg.LogLevel, rt.cfg.LogFormat)
			if err != nil {
				return errs.Wrap(err, "Invalid logging settings.")
			}
			rt.logger = logger
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			cobra.OnFinalize(stop)
			cmd.SetContext(ctxlog.WithLogger(ctx, logger))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build))

	initRootFlags(rootCmd, &rt.cfg)

	rootCmd.AddCommand(newServeCmd(rt))
	rootCmd.AddCommand(newRunCmd(rt))
	rootCmd.AddCommand(newValidateCmd(rt))
	rootCmd.AddCommand(newCheckCmd(rt))
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newToolsCmd(rt))
	rootCmd.AddCommand(newTranscriptCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newManCmd(rootCmd))
	rootCmd.AddCommand(newUpgradeCmd(rt))

	rootCmd.InitDefaultCompletionCmd()

	return rootCmd
}

func initRootFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, present.StdoutStyles().FlagDesc.Render(helpText["log-level"]))
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, present.StdoutStyles().FlagDesc.Render(helpText["log-format"]))
	flags.StringVar(&cfg.HTTPProxy, "http-proxy", cfg.HTTPProxy, present.StdoutStyles().FlagDesc.Render(helpText["http-proxy"]))
	flags.SortFlags = false

	flags.StringVar(&memprofileDir, "memprofile", "", "Write heap and allocation profiles to this directory on exit")
	_ = flags.MarkHidden("memprofile")
}

// requireConfig returns the settings load error, if any.
func (rt *runtime) requireConfig() error {
	return rt.cfgErr
}

// blueprintFlag registers the -f flag shared by the blueprint commands and
// its shell completion.
func blueprintFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "file", "f", *path, present.StdoutStyles().FlagDesc.Render(helpText["file"]))
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagFilename("file", "json", "yaml", "yml")
}

func stdout(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
func stderr(cmd *cobra.Command) io.Writer { return cmd.ErrOrStderr() }
