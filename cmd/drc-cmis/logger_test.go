package main

import (
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"drccmis/pkg/cmis"
	"drccmis/pkg/config"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := log.With(&zapLogger{log: zap.New(core)}, "service.name", "drc-cmis")

	h := log.NewHelper(logger)
	h.Infof("created folder %s", "2020")
	h.Warnw("msg", "cache miss", "key", "document:abc")
	_ = logger.Log(log.LevelError, "odd")

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "created folder 2020", entries[0].Message)
	assert.Equal(t, "drc-cmis", entries[0].ContextMap()["service.name"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "cache miss", entries[1].Message)
	assert.Equal(t, "document:abc", entries[1].ContextMap()["key"])

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "KEYVALS UNPAIRED", entries[2].ContextMap()["odd"])
}

func TestInitLogger(t *testing.T) {
	cfg, err := config.NewManager().Config()
	require.NoError(t, err)

	z, logger, err := initLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, z)
	assert.NoError(t, logger.Log(log.LevelDebug, "msg", "dropped below info"))
}

func TestDocumentSummary(t *testing.T) {
	doc := &cmis.Document{
		Object: &cmis.Object{Properties: cmis.Properties{
			cmis.PropObjectID:     {Value: "doc-1;1.0"},
			cmis.PropVersionLabel: {Value: "1.0"},
		}},
		UUID:         "8a6c4e3b-1f2d-4c5e-9a7b-6d5e4f3c2b1a",
		Titel:        "rapport",
		Bestandsnaam: "rapport.pdf",
	}

	summary := documentSummary(doc)
	assert.Equal(t, "doc-1;1.0", summary["object_id"])
	assert.Equal(t, "1.0", summary["version_label"])
	assert.Equal(t, "rapport", summary["titel"])
	assert.Equal(t, false, summary["locked"])
}
