package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init("chatty", "text")
	assert.Error(t, err)
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	err := Init("info", "xml")
	assert.Error(t, err)
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		Log = newLogger(bytes.NewBuffer(nil))
	})

	require.NoError(t, Init("debug", "json"))
	buf.Reset()

	Info("source indexed", "source_id", "brochure.pdf", "chunks", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "source indexed", entry["msg"])
	assert.Equal(t, "brochure.pdf", entry["source_id"])
	assert.EqualValues(t, 3, entry["chunks"])
}

func TestFieldsFromOddArgs(t *testing.T) {
	fields := fieldsFrom([]any{"a", 1, "dangling"})
	assert.Equal(t, logrus.Fields{"a": 1, "!BADKEY": "dangling"}, fields)
}
