package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/deepdive-md/deepdive/config"
)

func TestSetup_None(t *testing.T) {
	logger, hook := test.NewNullLogger()

	shutdown, err := Setup(context.Background(), "deepdive-test", &config.Config{OTELExporterType: ExporterNone}, logger)
	require.NoError(t, err)
	shutdown()
	assert.Empty(t, hook.AllEntries())
}

func TestSetup_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	orig := stdoutWriter
	stdoutWriter = &buf
	t.Cleanup(func() { stdoutWriter = orig })

	logger, hook := test.NewNullLogger()
	shutdown, err := Setup(context.Background(), "deepdive-test", &config.Config{OTELExporterType: ExporterStdout}, logger)
	require.NoError(t, err)
	assert.Equal(t, "stdout", hook.LastEntry().Data["exporter"])

	_, span := otel.Tracer("test").Start(context.Background(), "relay.chat")
	span.End()
	shutdown()

	assert.Contains(t, buf.String(), `"Name":"relay.chat"`)
	assert.Contains(t, buf.String(), "deepdive-test")
}

func TestSetup_Unknown(t *testing.T) {
	logger, _ := test.NewNullLogger()

	_, err := Setup(context.Background(), "deepdive-test", &config.Config{OTELExporterType: "zipkin"}, logger)
	assert.EqualError(t, err, `invalid OTEL_EXPORTER_TYPE "zipkin"`)
}
