// SPDX-License-Identifier: ice License 1.0

package main

import (
	"context"
	"testing"
	stdlibtime "time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/pushgate/database/tokens"
	"github.com/ice-blockchain/pushgate/server"
)

func TestPurgeExpiredTokens(t *testing.T) {
	t.Parallel()
	db, err := tokens.Open("")
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()
	ctx := context.Background()
	require.NoError(t, db.Store(ctx, "expired", "u1", stdlibtime.Millisecond))
	require.NoError(t, db.Store(ctx, "alive", "u1", stdlibtime.Hour))
	stdlibtime.Sleep(5 * stdlibtime.Millisecond)

	require.NoError(t, purgeExpiredTokens(ctx, db))
	purged, err := db.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)
	userID, err := db.UserID(ctx, "alive")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestApplyFlags(t *testing.T) { //nolint:paralleltest // Mutates the package level flags.
	serverCfg := new(server.Config)
	serverCfg.WS.Port = 9999
	applyFlags(serverCfg)
	assert.Equal(t, uint16(9999), serverCfg.WS.Port)

	port, cert, key = 1234, "cert.pem", "key.pem"
	defer func() { port, cert, key = 0, "", "" }()
	applyFlags(serverCfg)
	assert.Equal(t, uint16(1234), serverCfg.WS.Port)
	assert.True(t, serverCfg.WS.TLS())
}
