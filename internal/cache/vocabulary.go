// Package cache holds a short-lived read-through cache for vocabulary lookups.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"fritz-bot/internal/domain"
)

// Source is the vocabulary provider being cached.
type Source interface {
	ListTopics(ctx context.Context) ([]string, error)
	ListSpeechParts(ctx context.Context, topic string) ([]string, error)
	ListWords(ctx context.Context, topic, speechPart string) ([]domain.Word, error)
}

type entry struct {
	value   any
	expires time.Time
}

// Vocabulary serves repeated lookups from memory until ttl elapses.
// Failed lookups are not cached. Cached slices are copied on the way out
// so callers may mutate what they receive.
type Vocabulary struct {
	next Source
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

type Option func(*Vocabulary)

func WithClock(now func() time.Time) Option {
	return func(v *Vocabulary) {
		if now != nil {
			v.now = now
		}
	}
}

func NewVocabulary(next Source, ttl time.Duration, opts ...Option) (*Vocabulary, error) {
	if next == nil {
		return nil, errors.New("cache: source must not be nil")
	}
	if ttl <= 0 {
		return nil, errors.New("cache: ttl must be positive")
	}
	v := &Vocabulary{next: next, ttl: ttl, now: time.Now, entries: map[string]entry{}}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Vocabulary) ListTopics(ctx context.Context) ([]string, error) {
	return cached(v, "topics", func() ([]string, error) {
		return v.next.ListTopics(ctx)
	})
}

func (v *Vocabulary) ListSpeechParts(ctx context.Context, topic string) ([]string, error) {
	return cached(v, "parts\x00"+topic, func() ([]string, error) {
		return v.next.ListSpeechParts(ctx, topic)
	})
}

func (v *Vocabulary) ListWords(ctx context.Context, topic, speechPart string) ([]domain.Word, error) {
	return cached(v, "words\x00"+topic+"\x00"+speechPart, func() ([]domain.Word, error) {
		return v.next.ListWords(ctx, topic, speechPart)
	})
}

func cached[T any](v *Vocabulary, key string, load func() ([]T, error)) ([]T, error) {
	now := v.now()
	v.mu.Lock()
	e, ok := v.entries[key]
	v.mu.Unlock()
	if ok && now.Before(e.expires) {
		return append([]T(nil), e.value.([]T)...), nil
	}

	value, err := load()
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.entries[key] = entry{value: append([]T(nil), value...), expires: now.Add(v.ttl)}
	v.mu.Unlock()
	return value, nil
}
