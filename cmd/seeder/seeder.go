// SPDX-License-Identifier: ice License 1.0

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	stdlibtime "time"

	"github.com/spf13/cobra"
)

var (
	database    string
	url         string
	users       int
	topics      int
	perUser     int
	ttl         stdlibtime.Duration
	dialTimeout stdlibtime.Duration
	seeder      = &cobra.Command{
		Use:   "seeder",
		Short: "issues tokens for fake users and keeps them connected and subscribed to a running pushgate",
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			s := newSeeder(database, url, topics, perUser, dialTimeout)
			defer s.Close()
			if err := s.Seed(ctx, users, ttl); err != nil {
				log.Panic(err)
			}
			s.Wait(ctx)
		},
	}
	initFlags = func() {
		seeder.Flags().StringVar(&database, "database", "", "sqlite token database shared with pushgate (auth.database)")
		seeder.Flags().StringVar(&url, "url", "ws://localhost:9999/ws", "websocket route to connect to")
		seeder.Flags().IntVar(&users, "users", 1000, "count of users to connect")
		seeder.Flags().IntVar(&topics, "topics", 100, "count of distinct topics to spread subscriptions over")
		seeder.Flags().IntVar(&perUser, "perUser", 3, "subscriptions of each user")
		seeder.Flags().DurationVar(&ttl, "ttl", stdlibtime.Hour, "lifetime of the issued tokens")
		seeder.Flags().DurationVar(&dialTimeout, "dialTimeout", 5*stdlibtime.Second, "timeout of a single websocket handshake")
		if err := seeder.MarkFlagRequired("database"); err != nil {
			log.Fatal(err)
		}
	}
)

func init() {
	initFlags()
}

func main() {
	if err := seeder.Execute(); err != nil {
		log.Panic(err)
	}
}
