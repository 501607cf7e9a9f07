package config_test

import (
	"testing"

	"github.com/quartzsched/quartz/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedParams(t *testing.T) {
	c := config.Default()
	require.NoError(t, c.ParseSchedParams("queue-depth=32,delay-sched=true"))
	assert.Equal(t, 32, c.QueueDepth)
	assert.True(t, c.DelaySched)
}

func TestParseSchedParamsEmptyIsNoOp(t *testing.T) {
	c := config.Default()
	require.NoError(t, c.ParseSchedParams(""))
	assert.Equal(t, config.Default().QueueDepth, c.QueueDepth)
}

func TestParseSchedParamsRejectsUnknownKey(t *testing.T) {
	c := config.Default()
	assert.Error(t, c.ParseSchedParams("bogus=1"))
}

func TestParseSchedParamsRejectsMissingEquals(t *testing.T) {
	c := config.Default()
	assert.Error(t, c.ParseSchedParams("queue-depth"))
}

func TestValidateRejectsZeroQueueDepth(t *testing.T) {
	c := config.Default()
	c.QueueDepth = 0
	assert.Error(t, c.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := config.Default()
	assert.NoError(t, c.Validate())
}
