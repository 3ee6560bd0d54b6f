package model

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/nlu"
)

// DefaultDescriptions are the texts embedded for each intent label. A label
// without a description is embedded as is.
func DefaultDescriptions() map[string]string {
	return map[string]string{
		models.IntentFindEmployee.Label(): "поиск сотрудника: кто работает в отделе, найти разработчика, контакты коллеги, who knows python",
		models.IntentFindEvent.Label():    "информация о мероприятии: встреча, совещание, тренинг, корпоратив, когда собрание",
		models.IntentFindTask.Label():     "информация о задаче: мои задачи, дедлайн, статус задачи, что нужно сделать",
		models.IntentFindActivity.Label(): "социальные активности: спорт, турнир, киноклуб, настольные игры, хобби после работы",
		models.IntentGeneralInfo.Label():  "общая информация: правила компании, офис, отпуск, льготы, как оформить",
		models.IntentGreeting.Label():     "приветствие: привет, здравствуйте, добрый день, hello",
	}
}

// Classifier ranks labels by cosine similarity between the question and each
// label's description. Label embeddings are computed once and reused.
type Classifier struct {
	embedder     embeddings.Embedder
	descriptions map[string]string
	logger       *zap.Logger

	mu     sync.Mutex
	labels map[string][]float32
}

func NewClassifier(embedder embeddings.Embedder, descriptions map[string]string, logger *zap.Logger) *Classifier {
	return &Classifier{
		embedder:     embedder,
		descriptions: descriptions,
		logger:       logger,
		labels:       make(map[string][]float32),
	}
}

// Embed returns the embedding vector of text.
func (c *Classifier) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return v, nil
}

// Classify implements nlu.Classifier. Scores are cosine similarities floored
// at zero, best first.
func (c *Classifier) Classify(ctx context.Context, text string, labels []string) ([]nlu.LabelScore, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	query, err := c.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	vectors, err := c.labelVectors(ctx, labels)
	if err != nil {
		return nil, err
	}

	out := make([]nlu.LabelScore, 0, len(labels))
	for _, l := range labels {
		out = append(out, nlu.LabelScore{Label: l, Score: math.Max(0, cosine(query, vectors[l]))})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (c *Classifier) labelVectors(ctx context.Context, labels []string) (map[string][]float32, error) {
	c.mu.Lock()
	var missing []string
	for _, l := range labels {
		if _, ok := c.labels[l]; !ok {
			missing = append(missing, l)
		}
	}
	c.mu.Unlock()

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for i, l := range missing {
			texts[i] = l
			if d, ok := c.descriptions[l]; ok {
				texts[i] = d
			}
		}
		vecs, err := c.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding labels: %w", err)
		}
		if len(vecs) != len(missing) {
			return nil, fmt.Errorf("embedding labels: got %d vectors for %d labels", len(vecs), len(missing))
		}
		c.mu.Lock()
		for i, l := range missing {
			c.labels[l] = vecs[i]
		}
		c.mu.Unlock()
		c.logger.Debug("label embeddings computed", zap.Int("labels", len(missing)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]float32, len(labels))
	for _, l := range labels {
		out[l] = c.labels[l]
	}
	return out, nil
}

// cosine returns 0 for mismatched or zero-length vectors.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
