package commands

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"konnect/internal/app"
)

var (
	home       string
	configFile string
	v          *viper.Viper
	wire       *app.Wire
)

// Execute runs the konnect CLI.
func Execute(ctx context.Context) error {
	return newRoot().ExecuteContext(ctx)
}

func newRoot() *cobra.Command {
	v = app.NewViper("")
	root := &cobra.Command{
		Use:           "konnect",
		Short:         "Encrypted messaging client for the konnect key server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				home = app.DefaultHome()
			}
			if configFile == "" {
				configFile = filepath.Join(home, "config.yaml")
			}
			v.SetConfigFile(configFile)
			v.SetConfigType("yaml")

			cfg, err := app.NewConfig(home, v)
			if err != nil {
				return err
			}
			wire, err = app.NewWire(cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			return wire.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&home, "home", "", "config dir (default $KONNECT_HOME or ~/.konnect)")
	pf.StringVar(&configFile, "config", "", "config file (default <home>/config.yaml)")
	pf.String("server", app.DefaultServer, "key server base URL")
	pf.String("token", "", "bearer token (default the identity)")
	pf.String("user-type", "student", "your user type: student, club or admin")
	pf.String("user-id", "", "your user id")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	for key, flag := range map[string]string{
		"server":    "server",
		"token":     "token",
		"user.type": "user-type",
		"user.id":   "user-id",
		"log.level": "log-level",
	} {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		keygenCmd(),
		registerCmd(),
		loginCmd(),
		sendCmd(),
		sendGroupCmd(),
		recvCmd(),
		historyCmd(),
		requestCmd(),
		sealCmd(),
		openCmd(),
		fingerprintCmd(),
		vaultCmd(),
		backupCmd(),
		groupCmd(),
	)
	return root
}
