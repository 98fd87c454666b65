package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/novella/internal/telemetry"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), "novella-test", telemetry.Settings{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), "novella-test", telemetry.Settings{
		Endpoint: "http://localhost:4318",
		Enabled:  "FALSE",
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address; nothing is exported before shutdown.
	shutdown, err := telemetry.Setup(context.Background(), "novella-test", telemetry.Settings{
		Endpoint: "http://192.0.2.1:4318",
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
