package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetup_DefaultsToWarnLevelAndTextFormatter(t *testing.T) {
	t.Setenv("CODECONCAT_LOG_LEVEL", "")
	t.Setenv("CODECONCAT_LOG_FORMAT", "")

	Setup()

	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	_, isText := logrus.StandardLogger().Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}

func TestSetup_HonorsLevelEnvVar(t *testing.T) {
	t.Setenv("CODECONCAT_LOG_LEVEL", "debug")
	t.Setenv("CODECONCAT_LOG_FORMAT", "")

	Setup()

	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}

func TestSetup_InvalidLevelFallsBackToWarn(t *testing.T) {
	t.Setenv("CODECONCAT_LOG_LEVEL", "not-a-level")
	t.Setenv("CODECONCAT_LOG_FORMAT", "")

	Setup()

	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
}

func TestSetup_JSONFormatSwitchesFormatter(t *testing.T) {
	t.Setenv("CODECONCAT_LOG_LEVEL", "")
	t.Setenv("CODECONCAT_LOG_FORMAT", "json")

	Setup()

	_, isJSON := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}
