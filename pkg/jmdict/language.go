package jmdict

import "fmt"

// Language is a translation target language. The format only needs 3 bits
// per sense (spec §4.4: "lang_index & 0x7"), so exactly 8 languages are
// supported — the ones jmdict-simplified actually ships glosses for.
type Language uint8

const (
	English Language = iota
	French
	German
	Dutch
	Russian
	Hungarian
	Slovenian
	Spanish
)

var languageTags = [8]string{
	English:   "eng",
	French:    "fre",
	German:    "ger",
	Dutch:     "dut",
	Russian:   "rus",
	Hungarian: "hun",
	Slovenian: "slv",
	Spanish:   "spa",
}

var languageByTag = func() map[string]Language {
	m := make(map[string]Language, len(languageTags))
	for i, tag := range languageTags {
		m[tag] = Language(i)
	}
	return m
}()

// Tag returns the three-letter JMdict language tag for l.
func (l Language) Tag() string {
	if int(l) < len(languageTags) {
		return languageTags[l]
	}
	return ""
}

// ParseLanguage looks up a Language by its three-letter JMdict tag,
// defaulting to English when tag is empty (spec §3: gloss "defaults to
// 'eng' if missing").
func ParseLanguage(tag string) (Language, error) {
	if tag == "" {
		return English, nil
	}
	if l, ok := languageByTag[tag]; ok {
		return l, nil
	}
	return 0, fmt.Errorf("jmdict: unsupported language tag %q", tag)
}
