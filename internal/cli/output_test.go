package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp Response
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("ingest failed")
	require.NoError(t, err)

	var resp Response
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "ingest failed", resp.Error)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Successf("published %d events", 42)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "published 42 events")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error("ingest failed")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error: ingest failed")
}

func TestExitError(t *testing.T) {
	inner := fmt.Errorf("disk full")
	err := WrapExitError(ExitCommandError, "failed to open database", inner)

	assert.Equal(t, "failed to open database: disk full", err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCodeDefaults(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("plain error")))

	wrapped := fmt.Errorf("context: %w", WrapExitError(ExitCommandError, "bad flags", nil))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}
