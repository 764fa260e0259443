package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseTopic(t *testing.T) {
	assert.Equal(t, "aşk", ChooseTopic("Aşk"))
	assert.Equal(t, "komedi", ChooseTopic("kara komedi"))
	assert.Equal(t, AllowedTopics[0], ChooseTopic(""))
	assert.Equal(t, AllowedTopics[0], ChooseTopic("quantum physics"))
}

func TestParseHashtags(t *testing.T) {
	text := "Here you go:\n#aşk\n  #sevgi extra words\n#\nnot a tag\n#umut"

	tags := ParseHashtags(text, "love", 10)
	assert.Equal(t, []string{"#aşk", "#sevgi", "#umut", "#Love"}, tags)

	assert.Equal(t, []string{"#aşk", "#sevgi"}, ParseHashtags(text, "", 2))
	assert.Empty(t, ParseHashtags("nothing here", "a b", 5))
}

func TestGeminiClientAsk(t *testing.T) {
	var prompts []string
	gc := newGeminiClient(func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		if strings.Contains(prompt, "adet uygun Instagram hashtag") {
			return "#bir\n#iki\n#üç", nil
		}
		return "  Kısa bir cümle.  ", nil
	}, "tier2")

	caption, err := gc.GenerateCaption(context.Background(), "aşk")
	require.NoError(t, err)
	assert.Equal(t, "Kısa bir cümle.", caption)
	assert.Contains(t, prompts[0], "Konu: aşk")
	assert.Contains(t, prompts[0], "Sonunda hashtag eklemeyin")

	tags, err := gc.GenerateHashtags(context.Background(), "aşk", caption, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"#bir", "#iki"}, tags)
	assert.Contains(t, prompts[1], "Caption: Kısa bir cümle.")
	assert.Contains(t, prompts[1], "2 adet uygun Instagram hashtag")
}

func TestGeminiClientEmptyAndError(t *testing.T) {
	gc := newGeminiClient(func(ctx context.Context, prompt string) (string, error) {
		return "   ", nil
	}, "tier2")
	_, err := gc.GenerateImagePrompt(context.Background(), "dram")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("quota exceeded")
	gc = newGeminiClient(func(ctx context.Context, prompt string) (string, error) {
		return "", boom
	}, "tier2")
	_, err = gc.GenerateCaption(context.Background(), "dram")
	assert.ErrorIs(t, err, boom)
}

func TestImageClientGenerate(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/images/generations":
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			var req imageRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "dall-e-3", req.Model)
			assert.Equal(t, "a calm sea", req.Prompt)
			assert.Equal(t, "url", req.ResponseFormat)
			_, _ = w.Write([]byte(`{"data":[{"url":"` + srv.URL + `/img.png"}]}`))
		case "/img.png":
			_, _ = w.Write([]byte("png-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewImageClient(srv.URL+"/v1/images/generations", "secret", 5*time.Second)
	data, err := c.GenerateImage(context.Background(), "a calm sea")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestImageClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"content policy"}}`))
	}))
	defer srv.Close()

	c := NewImageClient(srv.URL, "secret", 5*time.Second)
	_, err := c.GenerateImage(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content policy")

	_, err = NewImageClient(srv.URL, "", time.Second).GenerateImage(context.Background(), "x")
	assert.Error(t, err)
}

func TestStaticTrendsRotates(t *testing.T) {
	tr := NewStaticTrends()
	ctx := context.Background()

	first, err := tr.Topic(ctx, "love")
	require.NoError(t, err)
	second, _ := tr.Topic(ctx, "LOVE")
	third, _ := tr.Topic(ctx, "love")
	fourth, _ := tr.Topic(ctx, "love")
	assert.Equal(t, []string{"aşk", "platonik aşk", "ikili ilişkiler", "aşk"}, []string{first, second, third, fourth})

	unknown, err := tr.Topic(ctx, "gardening")
	require.NoError(t, err)
	assert.Equal(t, AllowedTopics[0], unknown)
}
