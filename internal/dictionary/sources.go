package dictionary

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/antonholmquist/jason"
)

type freeDictionaryEntry struct {
	Word      string `json:"word"`
	Phonetic  string `json:"phonetic"`
	Phonetics []struct {
		Text  string `json:"text"`
		Audio string `json:"audio"`
	} `json:"phonetics"`
	Meanings []struct {
		PartOfSpeech string `json:"partOfSpeech"`
		Definitions  []struct {
			Definition string   `json:"definition"`
			Example    string   `json:"example"`
			Synonyms   []string `json:"synonyms"`
		} `json:"definitions"`
	} `json:"meanings"`
	SourceUrls []string `json:"sourceUrls"`
}

func (c *Client) freeDictionary(ctx context.Context, word string) (*Result, error) {
	var entries []freeDictionaryEntry
	err := c.get(ctx, wordURL(c.freeDictURL, word), nil, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&entries)
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return notFound(word), nil
	}

	entry := entries[0]
	res := &Result{
		Word:       entry.Word,
		Phonetic:   entry.Phonetic,
		Meanings:   make([]Meaning, 0, len(entry.Meanings)),
		SourceURLs: nonNil(entry.SourceUrls),
	}
	if res.Phonetic == "" && len(entry.Phonetics) > 0 {
		res.Phonetic = entry.Phonetics[0].Text
	}
	for _, p := range entry.Phonetics {
		if p.Audio != "" {
			res.AudioURL = p.Audio
			break
		}
	}
	for _, m := range entry.Meanings {
		meaning := Meaning{
			PartOfSpeech: m.PartOfSpeech,
			Definitions:  make([]Definition, 0, maxDefinitions),
		}
		for _, d := range m.Definitions[:min(len(m.Definitions), maxDefinitions)] {
			meaning.Definitions = append(meaning.Definitions, Definition{
				Definition: d.Definition,
				Example:    d.Example,
				Synonyms:   firstN(d.Synonyms, maxSynonyms),
			})
		}
		res.Meanings = append(res.Meanings, meaning)
	}
	return res, nil
}

// wordsAPI reads the reply loosely: pronunciation is an object for most words
// and a bare string for some.
func (c *Client) wordsAPI(ctx context.Context, word string) (*Result, error) {
	header := http.Header{}
	header.Set("X-RapidAPI-Host", wordsAPIHost)
	header.Set("X-RapidAPI-Key", c.rapidAPIKey)

	var obj *jason.Object
	err := c.get(ctx, wordURL(c.wordsAPIURL, word), header, func(r io.Reader) (err error) {
		obj, err = jason.NewObjectFromReader(r)
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Word:       word,
		Meanings:   []Meaning{},
		SourceURLs: []string{},
	}
	if w, err := obj.GetString("word"); err == nil && w != "" {
		res.Word = w
	}
	if v, err := obj.GetValue("pronunciation"); err == nil {
		if p, err := v.Object(); err == nil {
			res.Phonetic, _ = p.GetString("all")
		} else if s, err := v.String(); err == nil {
			res.Phonetic = s
		}
	}

	results, _ := obj.GetObjectArray("results")
	for _, r := range results[:min(len(results), maxMeanings)] {
		pos, err := r.GetString("partOfSpeech")
		if err != nil || pos == "" {
			pos = "unknown"
		}
		def, _ := r.GetString("definition")
		examples, _ := r.GetStringArray("examples")
		synonyms, _ := r.GetStringArray("synonyms")

		example := ""
		if len(examples) > 0 {
			example = examples[0]
		}
		res.Meanings = append(res.Meanings, Meaning{
			PartOfSpeech: pos,
			Definitions: []Definition{{
				Definition: def,
				Example:    example,
				Synonyms:   firstN(synonyms, maxSynonyms),
			}},
		})
	}
	return res, nil
}

func firstN(in []string, n int) []string {
	return nonNil(in[:min(len(in), n)])
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
