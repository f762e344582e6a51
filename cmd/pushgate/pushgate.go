// SPDX-License-Identifier: ice License 1.0

package main

import (
	"context"
	"fmt"
	"log"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ice-blockchain/pushgate/auth"
	"github.com/ice-blockchain/pushgate/cfg"
	"github.com/ice-blockchain/pushgate/database/tokens"
	"github.com/ice-blockchain/pushgate/push"
	"github.com/ice-blockchain/pushgate/registry"
	"github.com/ice-blockchain/pushgate/server"
)

var (
	configPaths []string
	port        uint16
	cert        string
	key         string
	tokenUser   string
	tokenTTL    stdlibtime.Duration
	pushgate    = &cobra.Command{
		Use:   "pushgate",
		Short: "websocket push gateway",
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			cfg.MustInit(configPaths...)
			serverCfg := cfg.MustGet[server.Config]()
			applyFlags(serverCfg)
			authenticator, closeStores, err := auth.FromConfig(ctx, cfg.MustGet[auth.Config]())
			if err != nil {
				log.Panic(errors.Wrap(err, "failed to set up authentication"))
			}
			defer func() {
				if cErr := closeStores(); cErr != nil {
					log.Printf("ERROR:%v", errors.Wrap(cErr, "failed to close token stores"))
				}
			}()
			cfg.Watch(func() {
				authenticator.Static().Reload(cfg.MustGet[auth.Config]().StaticTokens)
			})
			reg := registry.New()
			if err = server.ListenAndServe(ctx, cancel, serverCfg, &server.Dependencies{
				Registry:      reg,
				Gateway:       push.New(reg),
				Authenticator: authenticator,
			}); err != nil {
				log.Panic(err)
			}
		},
	}
	issueToken = &cobra.Command{
		Use:   "issue-token",
		Short: "issues an access token for a user into the configured token database",
		Run: func(cmd *cobra.Command, _ []string) {
			withTokenDatabase(func(db *tokens.Client) error {
				token, err := db.Issue(cmd.Context(), tokenUser, tokenTTL)
				if err == nil {
					fmt.Println(token) //nolint:forbidigo // It's the output of the command.
				}

				return err
			})
		},
	}
	purgeTokens = &cobra.Command{
		Use:   "purge-tokens",
		Short: "deletes every expired token from the configured token database",
		Run: func(cmd *cobra.Command, _ []string) {
			withTokenDatabase(func(db *tokens.Client) error {
				return purgeExpiredTokens(cmd.Context(), db)
			})
		},
	}
	initFlags = func() {
		pushgate.PersistentFlags().StringSliceVar(&configPaths, "config", nil, "paths to yaml configuration files, the first readable one is used")
		pushgate.Flags().StringVar(&cert, "cert", "", "path to tls certificate for the http/ws server (TLS)")
		pushgate.Flags().StringVar(&key, "key", "", "path to tls key for the http/ws server (TLS)")
		pushgate.Flags().Uint16Var(&port, "port", 0, "port to communicate with clients (http/websocket), overrides the configuration")
		issueToken.Flags().StringVar(&tokenUser, "user", "", "user the token is issued to")
		issueToken.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime, 0 never expires")
		if err := issueToken.MarkFlagRequired("user"); err != nil {
			log.Fatal(err)
		}
		pushgate.AddCommand(issueToken, purgeTokens)
	}
)

func init() {
	initFlags()
}

func withTokenDatabase(fn func(db *tokens.Client) error) {
	cfg.MustInit(configPaths...)
	authCfg := cfg.MustGet[auth.Config]()
	if authCfg.Database == "" {
		log.Panic("auth.database is not configured")
	}
	db := tokens.MustOpen(authCfg.Database)
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR:%v", err)
		}
	}()
	if err := fn(db); err != nil {
		log.Panic(err)
	}
}

func purgeExpiredTokens(ctx context.Context, db *tokens.Client) error {
	purged, err := db.PurgeExpired(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to purge expired tokens")
	}
	log.Printf("INFO: purged %v expired token(s)", purged)

	return nil
}

func applyFlags(serverCfg *server.Config) {
	if port != 0 {
		serverCfg.WS.Port = port
	}
	if cert != "" {
		serverCfg.WS.CertPath = cert
	}
	if key != "" {
		serverCfg.WS.KeyPath = key
	}
}

func main() {
	if err := pushgate.Execute(); err != nil {
		log.Panic(err)
	}
}
