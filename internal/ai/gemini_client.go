package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const geminiModel = "gemini-2.0-flash"

var ErrEmptyResponse = errors.New("empty model response")

// AllowedTopics are the themes captions are constrained to.
var AllowedTopics = []string{
	"duygusal",
	"ikili ilişkiler",
	"aşk",
	"arkadaşlık",
	"platonik aşk",
	"komedi",
	"dram",
}

// ChooseTopic maps a free-form topic onto AllowedTopics, defaulting to the first.
func ChooseTopic(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	if t == "" {
		return AllowedTopics[0]
	}
	for _, a := range AllowedTopics {
		if strings.Contains(t, a) || strings.Contains(a, t) {
			return a
		}
	}
	return AllowedTopics[0]
}

type RateLimits struct {
	RPM int // Requests per minute
	RPD int // Requests per day
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, RPD: 250}
	}
}

type completeFunc func(ctx context.Context, prompt string) (string, error)

// GeminiClient generates captions, hashtags and image prompts.
type GeminiClient struct {
	client      *genai.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	complete    completeFunc
}

func NewGeminiClient(ctx context.Context, apiKey, tier string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	gc := newGeminiClient(nil, tier)
	gc.client = client
	gc.complete = gc.generate
	return gc, nil
}

func newGeminiClient(complete completeFunc, tier string) *GeminiClient {
	limits := getRateLimits(tier)

	return &GeminiClient{
		breaker:     newBreaker("GeminiAPI"),
		rateLimiter: rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), max(1, limits.RPM/10)),
		complete:    complete,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

func (gc *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	model := gc.client.GenerativeModel(geminiModel)
	model.SetTemperature(0.8)
	model.SetMaxOutputTokens(512)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return sb.String(), nil
}

// ask runs one prompt through the rate limiter and circuit breaker.
func (gc *GeminiClient) ask(ctx context.Context, prompt string) (string, error) {
	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		return gc.complete(ctx, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	text := strings.TrimSpace(result.(string))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (gc *GeminiClient) GenerateCaption(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf("Türkçe olarak, Instagram için KISA, mobilde okunaklı ve paylaşılabilir bir içerik (1-3 kısa cümle) yaz.\n"+
		"Konu: %s\n"+
		"- Bu içerik yalnızca şu temalardan biri üzerine olsun: %s.\n"+
		"- Duygusal, samimi ve hafif dramatik ama umutlu bir ton kullanın.\n"+
		"- Emoji kullanmak isterseniz 1-2 ile sınırlayın.\n"+
		"- Sonunda hashtag eklemeyin.\n",
		ChooseTopic(topic), strings.Join(AllowedTopics, ", "))

	return gc.ask(ctx, prompt)
}

func (gc *GeminiClient) GenerateHashtags(ctx context.Context, topic, caption string, count int) ([]string, error) {
	if count <= 0 {
		count = 10
	}
	details := "Konuyu Türkçe olarak ele al. Topic: " + ChooseTopic(topic)
	if caption != "" {
		details += "\nCaption: " + truncateRunes(caption, 200)
	}
	prompt := fmt.Sprintf("Türkçe bağlamda, bu içerik için %d adet uygun Instagram hashtag'i üret.\n%s\n\n"+
		"Sadece hashtag'leri döndürün, her satırda bir tane, '#' ile başlayacak şekilde. Açıklama yazmayın.", count, details)

	text, err := gc.ask(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseHashtags(text, topic, count), nil
}

func (gc *GeminiClient) GenerateImagePrompt(ctx context.Context, topic string) (string, error) {
	prompt := "Create a concise image generation prompt for a square Instagram background about: " + ChooseTopic(topic) + "\n\n" +
		"- No readable text in the image (we'll overlay text later).\n" +
		"- Leave a clear centered negative space for a light-colored quote overlay.\n" +
		"- Style: soft, emotive, high-quality. Suggest palette and mood.\n" +
		"Return ONLY the image prompt as a single paragraph."

	return gc.ask(ctx, prompt)
}

// ParseHashtags keeps lines starting with '#', pads from topic words and caps at count.
func ParseHashtags(text, topic string, count int) []string {
	var tags []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") && len(line) > 1 {
			tags = append(tags, strings.Fields(line)[0])
		}
	}

	for _, word := range strings.Fields(strings.ToLower(topic)) {
		if len(tags) >= count {
			break
		}
		if len([]rune(word)) > 3 {
			r := []rune(word)
			tags = append(tags, "#"+strings.ToUpper(string(r[0]))+string(r[1:]))
		}
	}

	if len(tags) > count {
		tags = tags[:count]
	}
	return tags
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
