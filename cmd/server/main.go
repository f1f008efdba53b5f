// cmd/server/main.go
package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/inklobby/inklobby/internal/handlers"
	"github.com/inklobby/inklobby/internal/lobby"
)

type serverConfig struct {
	bind    string
	port    int
	tlsCert string
	tlsKey  string
	verbose bool
}

func (c *serverConfig) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func newCmd(cfg *serverConfig) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("INKLOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "inklobby",
		Short:         "Real-time multiplayer drawing-and-guessing game server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: INKLOBBY_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: INKLOBBY_PORT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: INKLOBBY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: INKLOBBY_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: INKLOBBY_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func serve(cfg *serverConfig) error {
	logger := logrus.New()
	if cfg.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	reg := lobby.NewRegistry(logger)

	server := &http.Server{
		Handler:     handlers.NewRouter(logger, reg),
		ReadTimeout: 10 * time.Second,
	}

	l, err := net.Listen("tcp", net.JoinHostPort(cfg.bind, fmt.Sprintf("%d", cfg.port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		if cfg.tlsCert != "" {
			errc <- server.ServeTLS(l, cfg.tlsCert, cfg.tlsKey)
		} else {
			errc <- server.Serve(l)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		return err
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
		return nil
	}
}

func main() {
	cfg := &serverConfig{}
	if err := newCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
