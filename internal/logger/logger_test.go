package logger_test

import (
	"bytes"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"konnect/internal/logger"
)

func TestLogger_WritesAtLevel(t *testing.T) {
	l := logger.NewLogger(uint32(log.InfoLevel))
	var buf bytes.Buffer
	l.SetWriter(&buf)

	l.Debugf("hidden %d", 1)
	l.WithField("user", "student:alice").Infof("handshake %s", "ok")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "handshake ok")
	require.Contains(t, out, "user=\"student:alice\"")
}

func TestGetLogLevel(t *testing.T) {
	lvl, err := logger.GetLogLevel("DEBUG")
	require.NoError(t, err)
	require.Equal(t, uint32(log.DebugLevel), lvl)

	_, err = logger.GetLogLevel("verbose")
	require.Error(t, err)
}

func TestOrDiscard_Nil(t *testing.T) {
	l := logger.OrDiscard(nil)
	require.NotNil(t, l)
	l.Errorf("dropped")
}
