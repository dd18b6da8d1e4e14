package main

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
)

func smallConfig() Config {
	cfg := Config{
		Producers: 3,
		Consumers: 3,
		Items:     3000,
		Capacity:  10,
		Duration:  time.Minute,
	}
	cfg.applyDefaults()
	return cfg
}

func TestRunStructure(t *testing.T) {
	log := zerolog.New(io.Discard)
	for _, name := range structures {
		t.Run(name, func(t *testing.T) {
			res := runStructure(context.Background(), smallConfig(), name, log)
			assert.True(t, res.OK, "%+v", res)
			assert.Equal(t, name, res.Structure)
			assert.Zero(t, res.Duplicates)
			assert.Zero(t, res.Missing)
			if name != "pubsub" {
				assert.Equal(t, int64(3000), res.Received)
			}
		})
	}
}

func TestRunStructure_RingStats(t *testing.T) {
	cfg := smallConfig()
	cfg.HopLimit = 2
	res := runStructure(context.Background(), cfg, "ring", zerolog.New(io.Discard))
	require.True(t, res.OK, "%+v", res)
	require.NotNil(t, res.Ring)
	assert.GreaterOrEqual(t, res.Ring.PushAttempts, uint64(cfg.Items))
	assert.GreaterOrEqual(t, res.Ring.PopAttempts, uint64(cfg.Items))
}

func TestRunStructure_Deadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := smallConfig()
	cfg.Consumers = 1
	cfg.Capacity = 1
	res := runStructure(ctx, cfg, "ring", zerolog.New(io.Discard))
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, context.Canceled.Error())
}

func TestRun_JSONReport(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-structure", "mpmc", "-items", "500", "-capacity", "8", "-json", "-log-level", "warn"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var rep report
	require.NoError(t, sonnet.Unmarshal(stdout.Bytes(), &rep))
	assert.True(t, rep.OK)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "mpmc", rep.Results[0].Structure)
	assert.Equal(t, int64(500), rep.Results[0].Received)
}

func TestRun_TextReport(t *testing.T) {
	var stdout bytes.Buffer
	code := run([]string{"-structure", "spsc", "-items", "200", "-log-level", "error"}, &stdout, io.Discard)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "STRUCTURE")
	assert.Contains(t, stdout.String(), "spsc")
}

func TestRun_BadArgs(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-producers", "x"}, io.Discard, io.Discard))
	assert.Equal(t, 2, run([]string{"-log-level", "loud"}, io.Discard, io.Discard))
}
