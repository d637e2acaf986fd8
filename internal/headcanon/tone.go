package headcanon

import "strings"

// Tone is the emotional register used to pick a template bucket.
type Tone string

const (
	ToneWholesome Tone = "wholesome"
	ToneFunny     Tone = "funny"
	ToneDark      Tone = "dark"
	ToneEmotional Tone = "emotional"
	// ToneRandom aggregates every named tone.
	ToneRandom Tone = "random"
)

// namedTones is also the concatenation order for ToneRandom pools.
var namedTones = []Tone{ToneWholesome, ToneFunny, ToneDark, ToneEmotional}

// NamedTones returns the four concrete tones in pool order.
func NamedTones() []Tone {
	out := make([]Tone, len(namedTones))
	copy(out, namedTones)
	return out
}

func (t Tone) named() bool {
	for _, n := range namedTones {
		if t == n {
			return true
		}
	}
	return false
}

// ResolveTone maps raw input to a Tone. "random" (any case) selects the
// aggregate mode, unknown or empty input falls back to ToneWholesome.
func ResolveTone(input string) Tone {
	t := Tone(strings.ToLower(strings.TrimSpace(input)))
	if t == ToneRandom || t.named() {
		return t
	}
	return ToneWholesome
}

// FandomCategory selects the bonus bucket appended to single-character pools.
type FandomCategory string

const (
	FandomAnime   FandomCategory = "anime"
	FandomBooks   FandomCategory = "books"
	FandomMovies  FandomCategory = "movies"
	FandomGames   FandomCategory = "games"
	FandomGeneral FandomCategory = "general"
)

var fandomCategories = []FandomCategory{FandomAnime, FandomBooks, FandomMovies, FandomGames, FandomGeneral}

// fandomRules are evaluated in order; the first keyword hit wins.
var fandomRules = []struct {
	category FandomCategory
	keywords []string
}{
	{FandomAnime, []string{"anime", "manga"}},
	{FandomBooks, []string{"book", "novel", "literature"}},
	{FandomMovies, []string{"movie", "film", "cinema"}},
	{FandomGames, []string{"game", "gaming", "video"}},
}

// ResolveFandom classifies free-text fandom input by substring keywords.
// Empty input and text with no keyword map to FandomGeneral.
func ResolveFandom(text string) FandomCategory {
	if text == "" {
		return FandomGeneral
	}
	lower := strings.ToLower(text)
	for _, rule := range fandomRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return FandomGeneral
}

// ToneOption describes a tone for the presentation layer.
type ToneOption struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// ToneOptions returns the fixed tone catalog shown in the UI.
func ToneOptions() []ToneOption {
	return []ToneOption{
		{Key: string(ToneWholesome), Label: "Wholesome", Description: "Heartwarming and comforting", Icon: "💖"},
		{Key: string(ToneFunny), Label: "Funny", Description: "Quirky and comedic", Icon: "😂"},
		{Key: string(ToneDark), Label: "Dark", Description: "Mysterious and angsty", Icon: "🖤"},
		{Key: string(ToneEmotional), Label: "Emotional", Description: "Deep and meaningful", Icon: "🥺"},
		{Key: string(ToneRandom), Label: "Random", Description: "Mix of all tones", Icon: "🎲"},
	}
}

// PopularFandoms returns the display names offered in the fandom dropdown.
func PopularFandoms() []string {
	return []string{
		"Anime/Manga",
		"Harry Potter",
		"Marvel",
		"DC Comics",
		"Star Wars",
		"Lord of the Rings",
		"Stranger Things",
		"Game of Thrones",
		"Percy Jackson",
		"Attack on Titan",
		"My Hero Academia",
		"Demon Slayer",
		"Naruto",
		"One Piece",
		"Genshin Impact",
		"Minecraft",
		"The Hunger Games",
		"Twilight",
		"Disney",
		"Studio Ghibli",
		"K-Pop",
		"Video Games",
		"Books/Literature",
		"Movies/Cinema",
		"TV Shows",
		"Original Characters",
		"Other",
	}
}
