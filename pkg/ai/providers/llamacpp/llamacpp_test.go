package llamacpp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
)

func TestLlamaPrompt_WrapsInLlama2ChatTemplate(t *testing.T) {
	out := llamaPrompt("system text", "base prompt")
	assert.Equal(t, "<s>[INST] <<SYS>>\nsystem text\n<</SYS>>\n\nbase prompt [/INST]", out)
}

func TestIntParam_UsesConfiguredValue(t *testing.T) {
	assert.Equal(t, 4096, intParam(map[string]any{"n_ctx": 4096}, "n_ctx", 2048))
}

func TestIntParam_AcceptsFloat64FromJSONDecoding(t *testing.T) {
	assert.Equal(t, 8, intParam(map[string]any{"n_gpu_layers": float64(8)}, "n_gpu_layers", 0))
}

func TestIntParam_FallsBackWhenMissingOrWrongType(t *testing.T) {
	assert.Equal(t, 2048, intParam(map[string]any{}, "n_ctx", 2048))
	assert.Equal(t, 2048, intParam(map[string]any{"n_ctx": "not a number"}, "n_ctx", 2048))
}

func TestExpandHome_ExpandsTildePrefix(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "models/x.gguf"), expandHome("~/models/x.gguf"))
}

func TestExpandHome_LeavesOtherPathsAlone(t *testing.T) {
	assert.Equal(t, "./models/x.gguf", expandHome("./models/x.gguf"))
}

func TestNew_ErrorsWhenNoModelFileFound(t *testing.T) {
	t.Setenv("LLAMA_MODEL_PATH", "")
	dir := t.TempDir()
	wd, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err := New(ai.DefaultProviderConfig(ai.LlamaCpp))
	assert.Error(t, err)
}

func TestNew_ResolvesModelFromEnvVar(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.gguf")
	require.NoError(t, os.WriteFile(modelPath, []byte("fake gguf"), 0o644))
	t.Setenv("LLAMA_MODEL_PATH", modelPath)

	p, err := New(ai.DefaultProviderConfig(ai.LlamaCpp))
	require.NoError(t, err)
	assert.Equal(t, modelPath, p.modelPath)
	assert.Equal(t, 2048, p.nCtx)
	assert.Equal(t, 4, p.nThreads)
}

func TestModelInfo_ReportsNotLoadedBeforeStart(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.gguf")
	require.NoError(t, os.WriteFile(modelPath, []byte("fake gguf"), 0o644))
	t.Setenv("LLAMA_MODEL_PATH", modelPath)

	p, err := New(ai.DefaultProviderConfig(ai.LlamaCpp))
	require.NoError(t, err)

	info := p.ModelInfo()
	assert.True(t, info.IsLocal)
	assert.Equal(t, false, info.Extra["model_loaded"])
}
