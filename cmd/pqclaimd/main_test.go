package main

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PQ-Bitcoin/internal/config"
	"PQ-Bitcoin/internal/observability/alerting"
	"PQ-Bitcoin/internal/task"
)

func TestBuildMemoryBackends(t *testing.T) {
	cfg := config.Default()

	store, err := buildStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &task.MemoryStore{}, store)

	queue, err := buildQueue(cfg)
	require.NoError(t, err)
	assert.IsType(t, &task.MemoryQueue{}, queue)
	require.NoError(t, queue.Close())
}

func TestBuildRejectsUnknownDrivers(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.TaskStore.Driver = "sqlite"
	cfg.TaskQueue.Driver = "kafka"

	_, err := buildStore(context.Background(), cfg)
	assert.Error(t, err)
	_, err = buildQueue(cfg)
	assert.Error(t, err)
}

func TestBuildProverUsesConfiguredKey(t *testing.T) {
	cfg := config.Default()
	cfg.Prover.AttestationKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	client, err := buildProver(cfg)
	require.NoError(t, err)

	key, err := crypto.HexToECDSA("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), client.Attester())

	cfg.Prover.AttestationKey = "not-hex"
	_, err = buildProver(cfg)
	assert.Error(t, err)
}

func TestBuildAlerterChannels(t *testing.T) {
	cfg := config.Default()
	cfg.Alerting.Audit = true
	cfg.Alerting.Webhook.URL = "http://127.0.0.1:9/hook"

	dispatcher, ok := buildAlerter(cfg).(*alerting.FanoutDispatcher)
	require.True(t, ok)
	assert.Equal(t, []alerting.Channel{alerting.ChannelAudit, alerting.ChannelWebhook}, dispatcher.Channels())
}
