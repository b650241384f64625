package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app carries what PersistentPreRunE prepares for the subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     appConfig
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "ajaxform",
		Short: "Submit HTML forms headlessly and serve mock form endpoints",
		Long: `ajaxform drives the same form controller that runs in the browser.

submit loads a page, fills in its form and posts it the way the page would,
printing the rendered success or error messages. serve answers form posts with
envelopes described in a YAML fixture file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./ajaxform.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("log-file", "", "also write JSON logs to this file, rotated")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("log.file", flags.Lookup("log-file"))

	cmd.AddCommand(
		submitCmd(a),
		serveCmd(a),
		versionCmd(),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := newLogger(cfg.Log, zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())))
	if err != nil {
		return err
	}
	a.log = log
	a.log.Debug("config loaded", zap.String("file", a.v.ConfigFileUsed()))
	return nil
}
