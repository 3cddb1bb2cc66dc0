package telemetry

import (
	"bytes"
	"context"
	"testing"

	"trade-journal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestInit(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		shutdown, err := Init(context.Background(), config.Telemetry{}, nil)

		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("ExportsSpans", func(t *testing.T) {
		// Arrange
		prev := otel.GetTracerProvider()
		t.Cleanup(func() { otel.SetTracerProvider(prev) })
		var buf bytes.Buffer
		shutdown, err := Init(context.Background(), config.Telemetry{Enabled: true, ServiceName: "journal-test"}, &buf)
		require.NoError(t, err)

		// Act
		_, span := StartSpan(context.Background(), "import", attribute.String("file", "trades.csv"))
		span.End()
		require.NoError(t, shutdown(context.Background()))

		// Assert
		assert.Contains(t, buf.String(), `"Name":"import"`)
		assert.Contains(t, buf.String(), "trades.csv")
		assert.Contains(t, buf.String(), "journal-test")
	})
}
