package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/ffmpeg"
)

type fakeChat struct {
	heartbeatErr error
	answer       string
	got          *api.ChatRequest
}

func (f *fakeChat) Heartbeat(context.Context) error { return f.heartbeatErr }

func (f *fakeChat) Chat(_ context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	f.got = req
	return fn(api.ChatResponse{Message: api.Message{Role: "assistant", Content: f.answer}})
}

type fakeRunner struct {
	args []string
	out  ffmpeg.Output
}

func (f *fakeRunner) Run(_ context.Context, args []string) (ffmpeg.Output, error) {
	f.args = args
	return f.out, nil
}

func TestPrepareClassifierNeedsOllama(t *testing.T) {
	_, err := PrepareClassifier(context.Background(), &fakeChat{heartbeatErr: errors.New("connection refused")}, config.Defaults().ClassifyObjects, testLogger())
	assert.Error(t, err)
}

func TestOllamaClassifierDecodesAnswer(t *testing.T) {
	img := filepath.Join(t.TempDir(), "frame_0001.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpegdata"), 0644))

	chat := &fakeChat{answer: `{"objects":[{"label":"dog","probability":0.4},{"label":"person","probability":0.95},{"label":"","probability":1}]}`}
	cfg := config.Defaults().ClassifyObjects
	cfg.MaxPredictions = 5
	c, err := PrepareClassifier(context.Background(), chat, cfg, testLogger())
	require.NoError(t, err)

	preds, err := c.Classify(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "person", preds[0].Label)
	assert.Equal(t, "dog", preds[1].Label)

	require.NotNil(t, chat.got)
	assert.Equal(t, config.DefaultModel, chat.got.Model)
	require.NotNil(t, chat.got.Stream)
	assert.False(t, *chat.got.Stream)
	assert.Equal(t, api.ImageData("jpegdata"), chat.got.Messages[0].Images[0])
}

func TestOllamaClassifierKeepsPlainText(t *testing.T) {
	img := filepath.Join(t.TempDir(), "f.jpg")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0644))

	c, err := PrepareClassifier(context.Background(), &fakeChat{answer: " a red car "}, config.Defaults().ClassifyObjects, testLogger())
	require.NoError(t, err)
	preds, err := c.Classify(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "a red car", preds[0].Label)
}

func TestTesseractOCR(t *testing.T) {
	r := &fakeRunner{out: ffmpeg.Output{Stdout: []byte(" 0O12a3\n")}}
	cfg := config.Defaults().ImgNumberOCR

	text, err := NewTesseractOCR(r).Recognize(context.Background(), "/ocr/frame_0001.jpg", cfg)
	require.NoError(t, err)
	assert.Equal(t, "0123", text)
	assert.Equal(t, []string{"/ocr/frame_0001.jpg", "stdout", "-l", "eng", "--oem", "1", "--psm", "7"}, r.args)

	cfg.StripNonDigits = false
	text, err = NewTesseractOCR(r).Recognize(context.Background(), "/ocr/frame_0001.jpg", cfg)
	require.NoError(t, err)
	assert.Equal(t, "0O12a3", text)
}
