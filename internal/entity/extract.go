// Package entity extracts named-entity candidates from page text with
// regular-expression heuristics and resolves them against the store.
package entity

import (
	"regexp"
	"sort"
	"strings"

	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/textutil"
)

const (
	DefaultTextSlice = 15000
	DefaultLimit     = 24
	minNameLen       = 3
)

// Candidate sources.
const (
	SourceProperNoun = "proper-noun"
	SourceAcronym    = "acronym"
	SourceHashtag    = "hashtag"
	SourcePattern    = "pattern"
	SourceTitle      = "title"
)

var (
	properNounRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	acronymRe    = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	hashtagRe    = regexp.MustCompile(`#([A-Za-z0-9_]{3,})`)
	conceptRe    = regexp.MustCompile(`(?i)\b[A-Z][a-zA-Z]+\s+(?:framework|library|algorithm|model|dataset|standard|protocol)\b`)
	titleRe      = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

	orgRe    = regexp.MustCompile(`(?i)\b(?:inc|corp|llc|ltd|company|university|institute)\b`)
	personRe = regexp.MustCompile(`(?i)\b(?:mr|mrs|dr|prof|sir)\b`)
	capsRe   = regexp.MustCompile(`^[A-Z]{2,}$`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// Candidate is a ranked, merged entity mention.
type Candidate struct {
	Name      string
	Type      string
	Weight    float64 // accumulated weight + frequency*0.2
	Aliases   []string
	Frequency int
	Source    string // comma-joined sources in first-seen order
}

// Extractor holds the text bound and result limit.
type Extractor struct {
	TextSlice int
	Limit     int
}

// Extract runs the default extractor.
func Extract(title, summary, text string) []Candidate {
	return Extractor{}.Extract(title, summary, text)
}

type accumulator struct {
	name      string
	typ       string
	weight    float64
	frequency int
	aliases   []string
	sources   []string
}

// Extract returns up to Limit candidates from title, summary and the first
// TextSlice characters of text, best first.
func (e Extractor) Extract(title, summary, text string) []Candidate {
	slice, limit := e.TextSlice, e.Limit
	if slice <= 0 {
		slice = DefaultTextSlice
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	combined := strings.TrimSpace(title + "\n" + summary + "\n" + textutil.Prefix(text, slice))

	var order []string
	byKey := map[string]*accumulator{}
	add := func(name, typ string, weight float64, source string) {
		cleaned := strings.TrimSpace(name)
		if textutil.RuneLen(cleaned) < minNameLen {
			return
		}
		key := strings.ToLower(cleaned)
		acc, ok := byKey[key]
		if !ok {
			acc = &accumulator{name: cleaned, typ: typ}
			byKey[key] = acc
			order = append(order, key)
		}
		acc.weight += weight
		acc.frequency++
		acc.aliases = appendUnique(acc.aliases, cleaned)
		acc.sources = appendUnique(acc.sources, source)
	}

	for _, m := range properNounRe.FindAllString(combined, -1) {
		add(m, GuessType(m), 2, SourceProperNoun)
	}
	for _, m := range acronymRe.FindAllString(combined, -1) {
		if len(m) > 8 {
			continue
		}
		add(m, db.EntityAcronym, 1.5, SourceAcronym)
	}
	for _, m := range hashtagRe.FindAllStringSubmatch(combined, -1) {
		add(m[1], db.EntityTag, 1, SourceHashtag)
	}
	for _, m := range conceptRe.FindAllString(combined, -1) {
		add(m, db.EntityConcept, 2.5, SourcePattern)
	}
	for _, m := range titleRe.FindAllString(title, -1) {
		add(m, GuessType(m), 3, SourceTitle)
	}

	out := make([]Candidate, 0, len(order))
	for _, key := range order {
		acc := byKey[key]
		out = append(out, Candidate{
			Name:      acc.name,
			Type:      acc.typ,
			Weight:    acc.weight + float64(acc.frequency)*0.2,
			Aliases:   acc.aliases,
			Frequency: acc.frequency,
			Source:    strings.Join(acc.sources, ","),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GuessType classifies a name: Organization by suffix word, Person by
// honorific, Acronym when all capitals, else Concept.
func GuessType(name string) string {
	switch {
	case name == "":
		return db.EntityConcept
	case orgRe.MatchString(name):
		return db.EntityOrganization
	case personRe.MatchString(name):
		return db.EntityPerson
	case capsRe.MatchString(spaceRe.ReplaceAllString(name, "")):
		return db.EntityAcronym
	default:
		return db.EntityConcept
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
