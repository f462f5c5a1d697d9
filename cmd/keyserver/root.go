package main

import (
	"github.com/spf13/cobra"

	"konnect/internal/app"
)

func newRoot() *cobra.Command {
	var configFile string
	v := app.NewViper("")

	cmd := &cobra.Command{
		Use:           "keyserver",
		Short:         "Development key and message server for konnect",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
				v.SetConfigType("yaml")
			}
			cfg, err := app.NewServerConfig(v)
			if err != nil {
				return err
			}
			srv, log, err := app.NewServer(cfg)
			if err != nil {
				return err
			}
			if len(cfg.MasterSecret) == 0 {
				log.Warnf("no master.secret set; session keys and vault records last only for this process")
			}
			return srv.Run(cmd.Context(), cfg.Listen)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "config file (yaml)")
	f.String("listen", app.DefaultListen, "listen address")
	f.Duration("reroll-interval", 0, "minimum server key lifetime (default 5m)")
	f.String("master-secret", "", "hex master secret for session key derivation")
	f.String("log-level", "info", "log level: debug, info, warn or error")
	for key, flag := range map[string]string{
		"listen":          "listen",
		"reroll.interval": "reroll-interval",
		"master.secret":   "master-secret",
		"log.level":       "log-level",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}
