package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/models"
)

const defaultPrompt = "List the objects visible in this image. " +
	`Answer only with JSON of the form {"objects":[{"label":"person","probability":0.93}]} ` +
	"where probability is your confidence between 0 and 1."

// Classifier labels the objects in an image
type Classifier interface {
	Classify(ctx context.Context, imagePath string) ([]models.Prediction, error)
}

// ChatClient is the subset of the Ollama client used for classification
type ChatClient interface {
	Heartbeat(ctx context.Context) error
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// OllamaClassifier asks a vision model served by Ollama to label images
type OllamaClassifier struct {
	client ChatClient
	cfg    config.ClassifierConfig
	logger *slog.Logger
}

// PrepareClassifier checks that Ollama is reachable and returns a classifier
// bound to the configured model. It must be called before any request that
// enables classification.
func PrepareClassifier(ctx context.Context, client ChatClient, cfg config.ClassifierConfig, logger *slog.Logger) (*OllamaClassifier, error) {
	// Check if Ollama is running
	if err := client.Heartbeat(ctx); err != nil {
		return nil, fmt.Errorf("ollama not reachable: %w", err)
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	if cfg.MaxPredictions <= 0 {
		cfg.MaxPredictions = 5
	}
	logger.Info("classifier ready", "model", cfg.Model)
	return &OllamaClassifier{client: client, cfg: cfg, logger: logger}, nil
}

// NewOllamaClient builds a client from OLLAMA_HOST.
func NewOllamaClient() (*api.Client, error) {
	return api.ClientFromEnvironment()
}

// Classify sends the image to the model and decodes its predictions.
func (c *OllamaClassifier) Classify(ctx context.Context, imagePath string) ([]models.Prediction, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", imagePath, err)
	}

	stream := false
	req := &api.ChatRequest{
		Model:  c.cfg.Model,
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
		Messages: []api.Message{
			{
				Role:    "user",
				Content: c.cfg.Prompt,
				Images:  []api.ImageData{data},
			},
		},
	}

	var content strings.Builder
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", imagePath, err)
	}
	c.logger.Log(ctx, config.LevelTrace, "raw model response", "frame", imagePath, "content", content.String())

	return c.decode(imagePath, content.String()), nil
}

// decode parses the model's JSON answer. An answer that is not valid JSON is
// kept as a single unscored label.
func (c *OllamaClassifier) decode(imagePath, content string) []models.Prediction {
	var answer struct {
		Objects []models.Prediction `json:"objects"`
	}
	if err := json.Unmarshal([]byte(content), &answer); err != nil {
		c.logger.Warn("model answer is not JSON", "frame", imagePath, "err", err)
		label := strings.TrimSpace(content)
		if label == "" {
			return []models.Prediction{}
		}
		return []models.Prediction{{Label: label}}
	}

	preds := answer.Objects[:0]
	for _, p := range answer.Objects {
		if strings.TrimSpace(p.Label) != "" {
			preds = append(preds, p)
		}
	}
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Probability > preds[j].Probability })
	if len(preds) > c.cfg.MaxPredictions {
		preds = preds[:c.cfg.MaxPredictions]
	}
	if preds == nil {
		preds = []models.Prediction{}
	}
	return preds
}
