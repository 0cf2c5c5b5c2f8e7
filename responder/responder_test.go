package responder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probability(v float64) *float64 {
	return &v
}

func TestTierFor(t *testing.T) {
	testCases := []struct {
		description string
		probability float64
		tier        Tier
	}{
		{"100 is very likely AI", 100, TierVeryLikelyAI},
		{"80 is very likely AI", 80, TierVeryLikelyAI},
		{"79.9 is likely AI", 79.9, TierLikelyAI},
		{"60 is likely AI", 60, TierLikelyAI},
		{"50 is possibly AI", 50, TierPossiblyAI},
		{"49 is possibly real", 49, TierPossiblyReal},
		{"40 is possibly real", 40, TierPossiblyReal},
		{"20 is likely real", 20, TierLikelyReal},
		{"19.9 is very likely real", 19.9, TierVeryLikelyReal},
		{"0 is very likely real", 0, TierVeryLikelyReal},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.tier, TierFor(testCase.probability))
		})
	}
}

func TestComposeSingle(t *testing.T) {
	composer := NewComposer("https://detect.example.com/r/")
	post := Post{MentionerHandle: "bob", Text: "Went to Paris with Alice yesterday!"}

	t.Run("85 percent with a short id links to the result", func(t *testing.T) {
		msg := composer.Compose(post, []ImageResult{{AIProbability: probability(85), ShortID: "Ab3x"}})
		assert.Contains(t, msg, "Very likely AI-generated")
		assert.Contains(t, msg, "85%")
		assert.Contains(t, msg, "https://detect.example.com/r/Ab3x")
		assert.Contains(t, msg, "@bob")
		assert.Contains(t, msg, "#Paris #Alice #AIDetection")
	})

	t.Run("85 percent without a short id drops only the link", func(t *testing.T) {
		withLink := composer.Compose(post, []ImageResult{{AIProbability: probability(85), ShortID: "Ab3x"}})
		msg := composer.Compose(post, []ImageResult{{AIProbability: probability(85)}})
		assert.Contains(t, msg, "Very likely AI-generated")
		assert.Contains(t, msg, "85%")
		assert.NotContains(t, msg, "https://")
		assert.NotContains(t, msg, "Full analysis")
		assert.Equal(t, strings.Replace(withLink, "\n\nFull analysis: https://detect.example.com/r/Ab3x", "", 1), msg)
	})

	t.Run("failed detection says so", func(t *testing.T) {
		msg := composer.Compose(post, []ImageResult{{ShortID: "Ab3x"}})
		assert.Contains(t, msg, "couldn't analyze")
		assert.NotContains(t, msg, "%")
	})
}

func TestComposeMulti(t *testing.T) {
	composer := NewComposer("https://detect.example.com/r")
	results := []ImageResult{
		{AIProbability: probability(90), ShortID: "Ab3x"},
		{AIProbability: probability(10), ShortID: "Cd4y"},
		{ShortID: "Ef5z"},
	}

	msg := composer.Compose(Post{}, results)
	lines := strings.Split(msg, "\n")
	require.GreaterOrEqual(t, len(lines), 5)

	assert.Equal(t, "Results for 3 images:", lines[0])
	assert.Equal(t, "Image 1: 🔴 90%", lines[1])
	assert.Equal(t, "Image 2: 🟢 10%", lines[2])
	assert.Equal(t, "Image 3: ⚠️ error", lines[3])
	assert.Equal(t, "Overall: 🟡 Possibly AI-generated (50% average of 2 analyzed)", lines[4])

	assert.Contains(t, msg, "Image 1 analysis: https://detect.example.com/r/Ab3x")
	assert.Contains(t, msg, "Image 2 analysis: https://detect.example.com/r/Cd4y")
	assert.Contains(t, msg, "Image 3 analysis: https://detect.example.com/r/Ef5z")

	t.Run("no successful scores", func(t *testing.T) {
		msg := composer.Compose(Post{}, []ImageResult{{}, {}})
		assert.Contains(t, msg, "none of the images could be analyzed")
		assert.NotContains(t, msg, "analysis:")
	})
}

func TestSelectHashtags(t *testing.T) {
	t.Run("keywords prefer proper nouns", func(t *testing.T) {
		tags := SelectHashtags(nil, "Went to Paris with Alice yesterday!")
		require.Len(t, tags, 3)
		assert.Equal(t, "Paris", tags[0])
		assert.Equal(t, "Alice", tags[1])
		for _, tag := range tags {
			assert.NotContains(t, []string{"the", "and", "to", "with"}, strings.ToLower(tag))
		}
	})

	t.Run("existing hashtags come first and spam is dropped", func(t *testing.T) {
		tags := SelectHashtags([]string{"#followback", "Election2024", "giveaway", "breaking"}, "Some Senator said stuff")
		assert.Equal(t, []string{"Election2024", "breaking", "Senator"}, tags)
	})

	t.Run("keywords never repeat chosen hashtags", func(t *testing.T) {
		tags := SelectHashtags([]string{"paris"}, "Went to Paris with Alice yesterday!")
		assert.Equal(t, []string{"paris", "Alice", "AIDetection"}, tags)
	})

	t.Run("empty posts fall back to the defaults and still get three tags", func(t *testing.T) {
		tags := SelectHashtags(nil, "")
		require.Len(t, tags, HashtagCount)
		assert.Equal(t, DefaultHashtags, tags[:2])
		assert.Equal(t, "FactCheck", tags[2])
	})

	t.Run("spam-only posts still get three tags", func(t *testing.T) {
		assert.Equal(t, []string{"AIDetection", "Deepfake", "FactCheck"}, SelectHashtags([]string{"#f4f", "#giveaway"}, ""))
	})

	t.Run("a single hashtag leaves room for both defaults", func(t *testing.T) {
		tags := SelectHashtags([]string{"storm"}, "")
		assert.Equal(t, []string{"storm", "AIDetection", "Deepfake"}, tags)
	})

	t.Run("never more than three", func(t *testing.T) {
		tags := SelectHashtags([]string{"one", "two", "three", "four"}, "Paris")
		assert.Equal(t, []string{"one", "two", "three"}, tags)
	})
}

func TestExtractKeywords(t *testing.T) {
	t.Run("frequency fallback lemmatizes and filters", func(t *testing.T) {
		keywords := ExtractKeywords("the flooding and the floods. flooded streets and the storms, storm again", 3, nil)
		assert.Equal(t, []string{"flood", "storm", "street"}, keywords)
	})

	t.Run("sentence initial words need support elsewhere", func(t *testing.T) {
		keywords := ExtractKeywords("Boston is great. I love Boston. Rain today.", 2, nil)
		assert.Equal(t, []string{"Boston", "great"}, keywords)
	})

	t.Run("profanity, handles and links are ignored", func(t *testing.T) {
		keywords := ExtractKeywords("@detectbot what the fuck is this https://t.co/abc shit", 3, nil)
		assert.Empty(t, keywords)
	})
}

func TestLemmatize(t *testing.T) {
	testCases := map[string]string{
		"went":    "go",
		"running": "run",
		"cities":  "city",
		"watched": "watch",
		"boxes":   "box",
		"storms":  "storm",
		"glass":   "glass",
		"called":  "call",
	}
	for word, lemma := range testCases {
		assert.Equal(t, lemma, Lemmatize(word), word)
	}
}
