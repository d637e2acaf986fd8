// Package headcanon selects and renders headcanon templates.
//
// An Engine owns an immutable Corpus. Each call builds a fresh candidate
// pool, shuffles it, keeps the first few templates and substitutes the
// character names. Nothing is shared between calls except the corpus and
// the random source, so an Engine can serve concurrent requests.
package headcanon

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

const (
	MinCount = 3
	MaxCount = 5
)

// ErrPoolTooSmall means the candidate pool has fewer templates than the
// clamped count. ParseCorpus rejects corpora that could trigger it.
var ErrPoolTooSmall = errors.New("candidate pool smaller than requested count")

// Shuffler permutes n elements through swap, like rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))

type Engine struct {
	corpus  *Corpus
	shuffle Shuffler
}

type Option func(*Engine)

// WithRand uses r as the random source. Access to r is serialized.
func WithRand(r *rand.Rand) Option {
	var mu sync.Mutex
	return func(e *Engine) {
		e.shuffle = func(n int, swap func(i, j int)) {
			mu.Lock()
			defer mu.Unlock()
			r.Shuffle(n, swap)
		}
	}
}

func WithShuffler(s Shuffler) Option {
	return func(e *Engine) {
		if s != nil {
			e.shuffle = s
		}
	}
}

// NewEngine returns an engine over corpus, or over DefaultCorpus when corpus
// is nil.
func NewEngine(corpus *Corpus, opts ...Option) *Engine {
	if corpus == nil {
		corpus = DefaultCorpus()
	}
	e := &Engine{corpus: corpus, shuffle: rand.Shuffle}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Corpus() *Corpus {
	return e.corpus
}

// Generate returns between MinCount and MaxCount headcanons for one
// character. The subject is not validated here.
func (e *Engine) Generate(subject, fandom, tone string, count int) ([]string, error) {
	pool := e.corpus.SinglePool(ResolveTone(tone), ResolveFandom(fandom))
	picked, err := Sample(pool, count, e.shuffle)
	if err != nil {
		return nil, err
	}
	return RenderSingle(picked, subject), nil
}

// GenerateShip is Generate for a pairing. Ship pools carry no fandom bucket.
func (e *Engine) GenerateShip(subject1, subject2, tone string, count int) ([]string, error) {
	pool := e.corpus.ShipPool(ResolveTone(tone))
	picked, err := Sample(pool, count, e.shuffle)
	if err != nil {
		return nil, err
	}
	return RenderShip(picked, subject1, subject2), nil
}

// ClampCount forces count into [MinCount, MaxCount].
func ClampCount(count int) int {
	return max(MinCount, min(MaxCount, count))
}

// Sample shuffles pool in place and returns its first ClampCount(count)
// entries. The pool must not be shared.
func Sample(pool []Template, count int, shuffle Shuffler) ([]Template, error) {
	count = ClampCount(count)
	if len(pool) < count {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrPoolTooSmall, len(pool), count)
	}
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool[:count:count], nil
}

// RenderSingle substitutes the trimmed name for every {character}.
func RenderSingle(templates []Template, name string) []string {
	return render(templates, strings.NewReplacer(PlaceholderCharacter, strings.TrimSpace(name)))
}

// RenderShip substitutes {character1} and {character2}.
func RenderShip(templates []Template, name1, name2 string) []string {
	return render(templates, strings.NewReplacer(
		PlaceholderCharacter1, strings.TrimSpace(name1),
		PlaceholderCharacter2, strings.TrimSpace(name2),
	))
}

func render(templates []Template, r *strings.Replacer) []string {
	out := make([]string, 0, len(templates))
	for _, t := range templates {
		out = append(out, r.Replace(string(t)))
	}
	return out
}
