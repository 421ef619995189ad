// Package ai 封装对 OpenAI Chat Completions 的调用，用于为酒款生成各阶段的特征。
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wine-tasting/internal/domain"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultModel    = "gpt-4o-mini"
	requestTimeout  = 30 * time.Second
)

// ErrNotConfigured 表示未配置 API Key
var ErrNotConfigured = errors.New("ai: api key is not configured")

// WineInput 是导演创建游戏时提交的一款酒
type WineInput struct {
	Name string `json:"name"`
	Year int    `json:"year"`
}

// Generation 是一次生成的结果，Wines 与输入一一对应
type Generation struct {
	Wines             []domain.Characteristics
	SimilarityWarning string
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// generatedContent 是模型按要求返回的 JSON 内容
type generatedContent struct {
	Wines []struct {
		Visual []string `json:"visual"`
		Smell  []string `json:"smell"`
		Taste  []string `json:"taste"`
	} `json:"wines"`
	SimilarityWarning string `json:"similarityWarning"`
}

// Client 调用 Chat Completions 生成特征
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewClient 创建客户端，model 为空时使用 DefaultModel
func NewClient(apiKey, model string) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// WithEndpoint 替换请求地址，主要用于测试
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// Enabled 判断是否配置了 API Key
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Generate 为每款酒生成三个阶段各 difficulty.CharacteristicCount() 个特征
func (c *Client) Generate(ctx context.Context, wines []WineInput, difficulty domain.Difficulty) (*Generation, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	if len(wines) == 0 {
		return nil, errors.New("ai: no wines to generate for")
	}
	count := difficulty.CharacteristicCount()
	logCtx := logrus.WithFields(logrus.Fields{"wine_count": len(wines), "difficulty": difficulty, "model": c.model})

	userPrompt, err := buildUserPrompt(wines, count)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.7,
		MaxTokens:      300 * len(wines),
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("ai: failed to build request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ai: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: failed to reach OpenAI: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ai: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ai: request failed (%d)", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("ai: failed to parse response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("ai: OpenAI error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("ai: OpenAI returned no choices")
	}

	gen, err := parseGeneration(parsed.Choices[0].Message.Content, len(wines), count)
	if err != nil {
		return nil, err
	}
	logCtx.WithField("latency_ms", time.Since(start).Milliseconds()).Info("Generated wine characteristics")
	return gen, nil
}

const systemPrompt = `You are a sommelier preparing a blind tasting game.
For every wine you receive, describe what a taster would notice in three phases:
visual (appearance), smell (aroma) and taste (palate).
Use short, common tasting terms of one to three words, e.g. "Ruby", "Black cherry", "Firm tannins".
Reply with a JSON object only: {"wines":[{"visual":[],"smell":[],"taste":[]}],"similarityWarning":""}.
Keep wines in the order given. If two wines would be hard to tell apart, explain briefly in similarityWarning, otherwise leave it empty.`

func buildUserPrompt(wines []WineInput, count int) (string, error) {
	list, err := json.Marshal(wines)
	if err != nil {
		return "", fmt.Errorf("ai: failed to build prompt: %w", err)
	}
	return fmt.Sprintf("Give exactly %d distinct characteristics per phase for each of these wines: %s", count, list), nil
}

// parseGeneration 校验模型输出：酒款数量一致，且每个阶段恰好 count 个不重复的特征
func parseGeneration(raw string, wineCount, count int) (*Generation, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var content generatedContent
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &content); err != nil {
		return nil, fmt.Errorf("ai: content is not valid JSON: %w", err)
	}
	if len(content.Wines) != wineCount {
		return nil, fmt.Errorf("ai: expected %d wines, got %d", wineCount, len(content.Wines))
	}

	gen := &Generation{
		Wines:             make([]domain.Characteristics, 0, wineCount),
		SimilarityWarning: strings.TrimSpace(content.SimilarityWarning),
	}
	for i, w := range content.Wines {
		visual, err := pick(w.Visual, count)
		if err != nil {
			return nil, fmt.Errorf("ai: wine %d visual: %w", i+1, err)
		}
		smell, err := pick(w.Smell, count)
		if err != nil {
			return nil, fmt.Errorf("ai: wine %d smell: %w", i+1, err)
		}
		taste, err := pick(w.Taste, count)
		if err != nil {
			return nil, fmt.Errorf("ai: wine %d taste: %w", i+1, err)
		}
		gen.Wines = append(gen.Wines, domain.Characteristics{Visual: visual, Smell: smell, Taste: taste})
	}
	return gen, nil
}

// pick 去掉空白与重复项后取前 count 个，不足时报错
func pick(values []string, count int) ([]string, error) {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, count)
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		if len(out) == count {
			return out, nil
		}
	}
	return nil, fmt.Errorf("need %d characteristics, got %d", count, len(out))
}
