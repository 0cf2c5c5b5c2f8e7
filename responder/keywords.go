package responder

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minKeywordLength = 3

var (
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	handlePattern   = regexp.MustCompile(`[@#][\p{L}\p{N}_]+`)
	sentencePattern = regexp.MustCompile(`[.!?\n]+`)
	wordPattern     = regexp.MustCompile(`\p{L}[\p{L}\p{N}'’]*`)
)

var stopWords = toSet(
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and", "any", "are", "as", "at",
	"be", "because", "been", "before", "being", "below", "between", "both", "but", "by",
	"can", "could", "did", "do", "does", "doing", "done", "down", "during",
	"each", "even", "ever", "every", "few", "for", "from", "further", "get", "go", "going", "gonna", "got",
	"had", "has", "have", "having", "he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"i", "if", "in", "into", "is", "it", "its", "itself", "just", "know", "like", "look", "lol",
	"make", "many", "me", "more", "most", "much", "my", "myself",
	"never", "new", "no", "nor", "not", "now", "of", "off", "oh", "ok", "okay", "on", "once", "one", "only", "or",
	"other", "our", "ours", "ourselves", "out", "over", "own",
	"please", "pls", "really", "real", "said", "same", "say", "see", "she", "should", "so", "some", "still", "such",
	"take", "than", "that", "the", "their", "theirs", "them", "themselves", "then", "there", "these", "they",
	"thing", "think", "this", "those", "through", "to", "today", "too", "under", "until", "up", "us",
	"very", "want", "was", "way", "we", "well", "were", "what", "when", "where", "which", "while", "who", "whom",
	"why", "will", "with", "would", "yes", "yesterday", "yet", "you", "your", "yours", "yourself", "yourselves",
	"fake", "image", "photo", "picture", "pic", "check", "true", "ai",
)

var profanity = toSet(
	"ass", "asshole", "bastard", "bitch", "bollocks", "bullshit", "crap", "cunt", "damn", "dick", "fuck",
	"fucker", "fucking", "goddamn", "motherfucker", "piss", "prick", "shit", "shitty", "slut", "twat", "wank", "whore",
)

var irregularLemmas = map[string]string{
	"went": "go", "gone": "go", "goes": "go",
	"saw": "see", "seen": "see",
	"ate": "eat", "eaten": "eat",
	"took": "take", "taken": "take",
	"made": "make", "ran": "run", "came": "come",
	"got": "get", "gotten": "get",
	"bought": "buy", "brought": "bring", "thought": "think", "caught": "catch", "taught": "teach",
	"said": "say", "did": "do", "done": "do",
	"was": "be", "were": "be", "been": "be", "is": "be", "are": "be", "am": "be",
	"had": "have", "has": "have",
	"found": "find", "told": "tell", "gave": "give", "given": "give",
	"knew": "know", "known": "know", "left": "leave", "felt": "feel", "kept": "keep",
	"began": "begin", "begun": "begin", "wrote": "write", "written": "write",
	"flew": "fly", "flown": "fly", "drove": "drive", "driven": "drive",
	"spoke": "speak", "spoken": "speak", "stole": "steal", "stolen": "steal",
	"built": "build", "sent": "send", "spent": "spend", "won": "win", "lost": "lose",
	"met": "meet", "paid": "pay", "sold": "sell", "stood": "stand", "understood": "understand",
	"children": "child", "men": "man", "women": "woman", "mice": "mouse", "feet": "foot", "teeth": "tooth",
}

// Lemmatize reduces a lowercase word to a base form with an irregular table
// and a few suffix rules. It is deliberately rough.
func Lemmatize(word string) string {
	if lemma, ok := irregularLemmas[word]; ok {
		return lemma
	}
	n := len(word)
	switch {
	case n > 4 && strings.HasSuffix(word, "ies"):
		return word[:n-3] + "y"
	case n > 5 && strings.HasSuffix(word, "ing"):
		return undouble(word[:n-3])
	case n > 4 && strings.HasSuffix(word, "ied"):
		return word[:n-3] + "y"
	case n > 4 && strings.HasSuffix(word, "ed"):
		return undouble(word[:n-2])
	case n > 4 && (strings.HasSuffix(word, "ches") || strings.HasSuffix(word, "shes") ||
		strings.HasSuffix(word, "xes") || strings.HasSuffix(word, "sses") || strings.HasSuffix(word, "zes")):
		return word[:n-2]
	case n > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") &&
		!strings.HasSuffix(word, "us") && !strings.HasSuffix(word, "is"):
		return word[:n-1]
	}
	return word
}

// "running" -> "runn" -> "run"
func undouble(stem string) string {
	n := len(stem)
	if n >= 3 && stem[n-1] == stem[n-2] && !strings.ContainsRune("aeiouls", rune(stem[n-1])) {
		return stem[:n-1]
	}
	return stem
}

type keywordCandidate struct {
	word  string
	count int
	first int
}

// ExtractKeywords ranks words from post text for use as hashtags. Proper
// nouns come first, then the most frequent remaining lemmas. Words matching
// exclude (case-insensitively) are skipped.
func ExtractKeywords(text string, limit int, exclude []string) []string {
	if limit <= 0 {
		return nil
	}
	excluded := map[string]bool{}
	for _, e := range exclude {
		excluded[strings.ToLower(strings.TrimPrefix(e, "#"))] = true
	}

	text = urlPattern.ReplaceAllString(text, " ")
	text = handlePattern.ReplaceAllString(text, " ")

	type token struct {
		word    string
		initial bool
	}
	var tokens []token
	for _, sentence := range sentencePattern.Split(text, -1) {
		for i, word := range wordPattern.FindAllString(sentence, -1) {
			word = strings.TrimSuffix(strings.TrimSuffix(word, "'s"), "’s")
			word = strings.TrimRight(word, "'’")
			tokens = append(tokens, token{word: word, initial: i == 0})
		}
	}

	// A capitalized word at the start of a sentence only counts as a proper
	// noun when it is also capitalized somewhere mid-sentence.
	capitalizedMidSentence := map[string]bool{}
	for _, tok := range tokens {
		if !tok.initial && isCapitalized(tok.word) {
			capitalizedMidSentence[tok.word] = true
		}
	}

	proper := map[string]*keywordCandidate{}
	common := map[string]*keywordCandidate{}
	for i, tok := range tokens {
		lower := strings.ToLower(tok.word)
		if utf8.RuneCountInString(lower) < minKeywordLength || stopWords[lower] || profanity[lower] {
			continue
		}
		if isCapitalized(tok.word) && (!tok.initial || capitalizedMidSentence[tok.word]) {
			bump(proper, tok.word, i)
			continue
		}
		lemma := Lemmatize(lower)
		if utf8.RuneCountInString(lemma) < minKeywordLength || stopWords[lemma] || profanity[lemma] {
			continue
		}
		bump(common, lemma, i)
	}

	var keywords []string
	seen := map[string]bool{}
	for _, group := range []map[string]*keywordCandidate{proper, common} {
		for _, candidate := range ranked(group) {
			key := strings.ToLower(candidate.word)
			if seen[key] || excluded[key] {
				continue
			}
			seen[key] = true
			keywords = append(keywords, candidate.word)
			if len(keywords) == limit {
				return keywords
			}
		}
	}
	return keywords
}

func bump(group map[string]*keywordCandidate, word string, position int) {
	if candidate, ok := group[word]; ok {
		candidate.count++
		return
	}
	group[word] = &keywordCandidate{word: word, count: 1, first: position}
}

func ranked(group map[string]*keywordCandidate) []*keywordCandidate {
	candidates := make([]*keywordCandidate, 0, len(group))
	for _, candidate := range group {
		candidates = append(candidates, candidate)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].first < candidates[j].first
	})
	return candidates
}

func isCapitalized(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r)
}

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
