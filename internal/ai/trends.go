package ai

import (
	"context"
	"strings"
	"sync"
)

var nicheTopics = map[string][]string{
	"":            AllowedTopics,
	"motivation":  {"duygusal", "umut", "yeni başlangıçlar", "sabır"},
	"love":        {"aşk", "platonik aşk", "ikili ilişkiler"},
	"friendship":  {"arkadaşlık", "vefa", "ikili ilişkiler"},
	"comedy":      {"komedi", "günlük hayat", "iş hayatı"},
	"drama":       {"dram", "özlem", "veda"},
	"technology":  {"yapay zeka", "otomasyon", "dijital yaşam"},
	"photography": {"şehir", "doğa", "gün batımı"},
}

// StaticTrends rotates through a fixed topic list per niche.
type StaticTrends struct {
	mu   sync.Mutex
	next map[string]int
}

func NewStaticTrends() *StaticTrends {
	return &StaticTrends{next: make(map[string]int)}
}

func (t *StaticTrends) Topic(ctx context.Context, niche string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := strings.ToLower(strings.TrimSpace(niche))
	topics, ok := nicheTopics[key]
	if !ok {
		key = ""
		topics = nicheTopics[key]
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.next[key] % len(topics)
	t.next[key] = i + 1
	return topics[i], nil
}
