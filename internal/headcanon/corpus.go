package headcanon

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed corpus.yaml
var embeddedCorpus []byte

// ErrInvalidCorpus is returned when corpus data breaks a structural rule.
var ErrInvalidCorpus = errors.New("invalid corpus")

// Template is a headcanon with {character} or {character1}/{character2}
// placeholders.
type Template string

const (
	PlaceholderCharacter  = "{character}"
	PlaceholderCharacter1 = "{character1}"
	PlaceholderCharacter2 = "{character2}"
)

var placeholderRe = regexp.MustCompile(`\{[^{}]*\}`)

// Corpus holds the template pools. It is never modified after parsing;
// every accessor returns a copy.
type Corpus struct {
	single  map[Tone][]Template
	fandoms map[FandomCategory][]Template
	ship    map[Tone][]Template
}

type corpusFile struct {
	Single struct {
		Tones   map[string][]string `yaml:"tones"`
		Fandoms map[string][]string `yaml:"fandoms"`
	} `yaml:"single"`
	Ship struct {
		Tones map[string][]string `yaml:"tones"`
	} `yaml:"ship"`
}

var defaultCorpus = sync.OnceValue(func() *Corpus {
	c, err := ParseCorpus(embeddedCorpus)
	if err != nil {
		panic(fmt.Sprintf("embedded corpus: %v", err))
	}
	return c
})

// DefaultCorpus returns the corpus compiled into the binary.
func DefaultCorpus() *Corpus {
	return defaultCorpus()
}

// LoadCorpus reads and validates a corpus YAML file.
func LoadCorpus(path string) (*Corpus, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return ParseCorpus(b)
}

// ParseCorpus decodes corpus YAML and checks that every bucket exists, is
// non-empty, carries exactly its corpus' placeholders and that no template
// appears twice within a corpus.
func ParseCorpus(data []byte) (*Corpus, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}

	single, err := toneBuckets("single", f.Single.Tones, []string{PlaceholderCharacter})
	if err != nil {
		return nil, err
	}
	ship, err := toneBuckets("ship", f.Ship.Tones, []string{PlaceholderCharacter1, PlaceholderCharacter2})
	if err != nil {
		return nil, err
	}

	fandoms := make(map[FandomCategory][]Template, len(fandomCategories))
	for key := range f.Single.Fandoms {
		if !knownFandom(FandomCategory(key)) {
			return nil, fmt.Errorf("%w: single: unknown fandom category %q", ErrInvalidCorpus, key)
		}
	}
	for _, cat := range fandomCategories {
		bucket, err := checkBucket("single", string(cat), f.Single.Fandoms[string(cat)], []string{PlaceholderCharacter})
		if err != nil {
			return nil, err
		}
		fandoms[cat] = bucket
	}

	if err := checkUnique("single", single, fandoms); err != nil {
		return nil, err
	}
	if err := checkUnique("ship", ship, nil); err != nil {
		return nil, err
	}

	// Ship pools get no fandom bucket, and single pools get at least the
	// smallest one, so these floors keep sampling from ever running short.
	minFandom := MaxCount
	for _, b := range fandoms {
		minFandom = min(minFandom, len(b))
	}
	for _, t := range namedTones {
		if len(ship[t]) < MaxCount {
			return nil, fmt.Errorf("%w: ship/%s has %d templates, need %d", ErrInvalidCorpus, t, len(ship[t]), MaxCount)
		}
		if len(single[t])+minFandom < MaxCount {
			return nil, fmt.Errorf("%w: single/%s pool can fall below %d templates", ErrInvalidCorpus, t, MaxCount)
		}
	}

	return &Corpus{single: single, fandoms: fandoms, ship: ship}, nil
}

func toneBuckets(kind string, raw map[string][]string, want []string) (map[Tone][]Template, error) {
	for key := range raw {
		if !Tone(key).named() {
			return nil, fmt.Errorf("%w: %s: unknown tone %q", ErrInvalidCorpus, kind, key)
		}
	}
	out := make(map[Tone][]Template, len(namedTones))
	for _, t := range namedTones {
		bucket, err := checkBucket(kind, string(t), raw[string(t)], want)
		if err != nil {
			return nil, err
		}
		out[t] = bucket
	}
	return out, nil
}

func checkBucket(kind, name string, raw []string, want []string) ([]Template, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s/%s is empty", ErrInvalidCorpus, kind, name)
	}
	out := make([]Template, 0, len(raw))
	for i, s := range raw {
		if err := checkPlaceholders(s, want); err != nil {
			return nil, fmt.Errorf("%w: %s/%s[%d]: %v", ErrInvalidCorpus, kind, name, i, err)
		}
		out = append(out, Template(s))
	}
	return out, nil
}

func checkPlaceholders(s string, want []string) error {
	found := make(map[string]bool)
	for _, tok := range placeholderRe.FindAllString(s, -1) {
		ok := false
		for _, w := range want {
			if tok == w {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unexpected placeholder %s", tok)
		}
		found[tok] = true
	}
	var missing []string
	for _, w := range want {
		if !found[w] {
			missing = append(missing, w)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing placeholder %s", strings.Join(missing, ", "))
	}
	return nil
}

func checkUnique(kind string, tones map[Tone][]Template, fandoms map[FandomCategory][]Template) error {
	seen := make(map[Template]string)
	add := func(bucket string, ts []Template) error {
		for _, t := range ts {
			if prev, ok := seen[t]; ok {
				return fmt.Errorf("%w: %s: duplicate template in %s and %s: %q", ErrInvalidCorpus, kind, prev, bucket, t)
			}
			seen[t] = bucket
		}
		return nil
	}
	for _, t := range namedTones {
		if err := add(string(t), tones[t]); err != nil {
			return err
		}
	}
	for _, cat := range fandomCategories {
		if err := add(string(cat), fandoms[cat]); err != nil {
			return err
		}
	}
	return nil
}

func knownFandom(cat FandomCategory) bool {
	for _, c := range fandomCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// Tone returns a copy of the single-character bucket for a named tone.
func (c *Corpus) Tone(t Tone) []Template {
	return clone(c.single[t])
}

// Fandom returns a copy of a fandom-addition bucket.
func (c *Corpus) Fandom(cat FandomCategory) []Template {
	return clone(c.fandoms[cat])
}

// ShipTone returns a copy of the ship bucket for a named tone.
func (c *Corpus) ShipTone(t Tone) []Template {
	return clone(c.ship[t])
}

// SinglePool builds the candidate list for a single-character request: the
// tone bucket (or all tone buckets for ToneRandom) followed by the fandom
// bucket. The result is freshly allocated.
func (c *Corpus) SinglePool(tone Tone, fandom FandomCategory) []Template {
	if !knownFandom(fandom) {
		fandom = FandomGeneral
	}
	return tonePool(c.single, tone, c.fandoms[fandom])
}

// ShipPool builds the candidate list for a pairing request.
func (c *Corpus) ShipPool(tone Tone) []Template {
	return tonePool(c.ship, tone, nil)
}

func tonePool(buckets map[Tone][]Template, tone Tone, extra []Template) []Template {
	tones := []Tone{ResolveTone(string(tone))}
	if tones[0] == ToneRandom {
		tones = namedTones
	}
	n := len(extra)
	for _, t := range tones {
		n += len(buckets[t])
	}
	pool := make([]Template, 0, n)
	for _, t := range tones {
		pool = append(pool, buckets[t]...)
	}
	return append(pool, extra...)
}

func clone(ts []Template) []Template {
	out := make([]Template, len(ts))
	copy(out, ts)
	return out
}
