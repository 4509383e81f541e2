package dictionary

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/toranomaki/toranomaki/pkg/db"
	"github.com/toranomaki/toranomaki/pkg/dictfile"
	"github.com/toranomaki/toranomaki/pkg/jmdict"
)

// Importer handles dictionary matching and updating. It wraps a
// dictfile.Reader built from the loaded jmdict-simplified entries: the
// same C5/C6 binary format the toranomaki CLI writes and reads is used
// in-process here, so matching goes through the same word-table and
// entry-list lookups the core package implements.
type Importer struct {
	conn    *sql.DB
	reader  *dictfile.Reader
	tmpPath string
}

// NewImporter builds the binary dictionary from entries (via
// dictionary.BuildEntries and dictfile.Write) and opens a reader over it.
func NewImporter(conn *sql.DB, entries []JMdictEntry) (*Importer, error) {
	built, err := BuildEntries(entries)
	if err != nil {
		return nil, fmt.Errorf("building dictionary entries: %w", err)
	}

	f, err := os.CreateTemp("", "jmdict-*.dat")
	if err != nil {
		return nil, fmt.Errorf("creating dictionary file: %w", err)
	}
	tmpPath := f.Name()

	if err := dictfile.Write(f, built); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("writing dictionary file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing dictionary file: %w", err)
	}

	reader, err := dictfile.Open(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("opening dictionary file: %w", err)
	}

	return &Importer{conn: conn, reader: reader, tmpPath: tmpPath}, nil
}

// Close releases the underlying dictionary file and its backing temp file.
func (im *Importer) Close() error {
	err := im.reader.Close()
	os.Remove(im.tmpPath)
	return err
}

// ProcessUpdates finds definitions for words in the DB and updates them,
// recording each word's resolved JMdict entry id and entry-pool offset
// alongside its formatted definitions JSON (db.UpdateWordDictMatch) so a
// later pass can jump straight back into the binary dictionary.
func (im *Importer) ProcessUpdates() (int, error) {
	rows, err := im.conn.Query(`SELECT id, word, lemma, pronunciation, definitions FROM words`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	updatedCount := 0

	type update struct {
		id     int64
		def    string
		entry  uint32
		offset uint32
	}
	var updates []update

	for rows.Next() {
		var id int64
		var word string
		var lemma, pronunciation, definitions sql.NullString

		if err := rows.Scan(&id, &word, &lemma, &pronunciation, &definitions); err != nil {
			return updatedCount, err
		}

		if definitions.Valid && definitions.String != "" {
			continue
		}

		matches, err := im.findMatchesDetailed(word, lemma.String, pronunciation.String)
		if err != nil {
			log.Printf("Error matching word %s: %v", word, err)
			continue
		}
		if len(matches) == 0 {
			continue
		}

		entries := make([]jmdict.Entry, len(matches))
		for i, m := range matches {
			entries[i] = m.Entry
		}
		defJSON, err := FormatDefinitions(entries)
		if err != nil {
			log.Printf("Error formatting definition for word %s: %v", word, err)
			continue
		}

		updates = append(updates, update{id, defJSON, matches[0].Entry.ID, matches[0].Offset})
	}

	for _, u := range updates {
		if err := db.UpdateWordDictMatch(im.conn, u.id, u.entry, u.offset, u.def); err != nil {
			log.Printf("Failed to update word %d: %v", u.id, err)
		} else {
			updatedCount++
		}
	}

	return updatedCount, nil
}

// Lookup finds matching entries for a given word, lemma, and pronunciation.
func (im *Importer) Lookup(word, lemma, pronunciation string) ([]jmdict.Entry, error) {
	matches, err := im.findMatchesDetailed(word, lemma, pronunciation)
	if err != nil {
		return nil, err
	}
	entries := make([]jmdict.Entry, len(matches))
	for i, m := range matches {
		entries[i] = m.Entry
	}
	return entries, nil
}

// GetDefinitionsJSON returns the JSON string of definitions for the given word details.
func (im *Importer) GetDefinitionsJSON(word, lemma, pronunciation string) (string, error) {
	matches, err := im.Lookup(word, lemma, pronunciation)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	return FormatDefinitions(matches)
}

// matchedEntry pairs a resolved entry with the entry-pool byte offset it was
// read from, so callers that persist the match (ProcessUpdates) can record
// it for direct re-fetch without exposing dictfile internals through Lookup.
type matchedEntry struct {
	Entry  jmdict.Entry
	Offset uint32
}

// findMatchesDetailed looks up word and lemma against the single Japanese
// word index (kanji and kana share the same alphabet in the binary format),
// then narrows by pronunciation when the caller supplied one.
func (im *Importer) findMatchesDetailed(word, lemma, pronunciation string) ([]matchedEntry, error) {
	offsets, err := im.reader.GetEntriesUsingAll(dictfile.Japanese, []string{word})
	if err != nil {
		return nil, err
	}
	if len(offsets) == 0 && lemma != "" && lemma != word {
		offsets, err = im.reader.GetEntriesUsingAll(dictfile.Japanese, []string{lemma})
		if err != nil {
			return nil, err
		}
	}
	if len(offsets) == 0 {
		return nil, nil
	}

	var results []matchedEntry
	for _, off := range offsets {
		e, err := im.reader.GetEntryAt(off)
		if err != nil {
			return nil, err
		}
		if isMatch(e, pronunciation) {
			results = append(results, matchedEntry{Entry: e, Offset: off})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Entry.ID < results[j].Entry.ID })
	return results, nil
}

func isMatch(entry jmdict.Entry, pronunciation string) bool {
	if pronunciation == "" {
		return true
	}
	normalizedPron := ToHiragana(pronunciation)
	for _, reading := range entry.Readings {
		if ToHiragana(reading) == normalizedPron {
			return true
		}
	}
	return false
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}

// FormatDefinitions formats the entries into a JSON string.
func FormatDefinitions(entries []jmdict.Entry) (string, error) {
	var defs []DefinitionEntry

	for _, e := range entries {
		var senses []string
		var poses []string

		for _, s := range e.Senses {
			senses = append(senses, s.Gloss)
			for _, p := range s.POS {
				poses = append(poses, p.Label())
			}
		}
		defs = append(defs, DefinitionEntry{
			Senses: senses,
			POS:    poses,
		})
	}

	bytes, err := json.Marshal(defs)
	return string(bytes), err
}
