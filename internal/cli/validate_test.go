package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidModel(t *testing.T) {
	modelPath := writeFixture(t, "model.cue", customerModelCUE)

	out, err := execCommand(t, "validate", modelPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Model valid")
}

func TestValidate_ValidModelJSON(t *testing.T) {
	modelPath := writeFixture(t, "model.cue", customerModelCUE)

	out, err := execCommand(t, "--format", "json", "validate", modelPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidate_DuplicateStoreName(t *testing.T) {
	modelPath := writeFixture(t, "model.cue", `
entities: Customer: {
	properties: {
		Id:  {type: "int", storeName: "id"}
		Key: {type: "string", storeName: "id"}
	}
}
`)

	out, err := execCommand(t, "validate", modelPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "M101")
}

func TestValidate_ErrorsInJSON(t *testing.T) {
	modelPath := writeFixture(t, "model.cue", `
entities: Post: {
	abstract: true
}
entities: Article: {
	base: "Post"
}
`)

	out, err := execCommand(t, "--format", "json", "validate", modelPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "M102", resp.Error.Code)
}

func TestValidate_MissingPath(t *testing.T) {
	out, err := execCommand(t, "validate", "/does/not/exist")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestValidate_BadCUE(t *testing.T) {
	modelPath := writeFixture(t, "model.cue", `entities: Customer: { container: 42 `)

	_, err := execCommand(t, "validate", modelPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
