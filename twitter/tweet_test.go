package twitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeconstructTweetURL(t *testing.T) {
	t.Run("successfully parses twitter.com URLs", func(t *testing.T) {
		userName, tweetID, err := DeconstructTweetURL("https://www.twitter.com/FooBar/status/1234567")
		assert.NoError(t, err)
		assert.Equal(t, "FooBar", userName)
		assert.Equal(t, "1234567", tweetID)

		userName, tweetID, err = DeconstructTweetURL("http://twitter.com/FooBar/status/1234567")
		assert.NoError(t, err)
		assert.Equal(t, "FooBar", userName)
		assert.Equal(t, "1234567", tweetID)
	})

	t.Run("successfully parses x.com URLs", func(t *testing.T) {
		userName, tweetID, err := DeconstructTweetURL("https://x.com/FooBar/status/1234567")
		assert.NoError(t, err)
		assert.Equal(t, "FooBar", userName)
		assert.Equal(t, "1234567", tweetID)
	})

	t.Run("rejects non-Twitter URLs", func(t *testing.T) {
		userName, tweetID, err := DeconstructTweetURL("https://www.someotherwebsite.com/123456/status/foo")
		assert.Error(t, err)
		assert.Equal(t, "", userName)
		assert.Equal(t, "", tweetID)
	})

	t.Run("round trips with ConstructTweetURL", func(t *testing.T) {
		userName, tweetID, err := DeconstructTweetURL(ConstructTweetURL("alice", "42"))
		assert.NoError(t, err)
		assert.Equal(t, "alice", userName)
		assert.Equal(t, "42", tweetID)
	})
}

func TestIsPlatformLink(t *testing.T) {
	assert.True(t, IsPlatformLink("https://twitter.com/foo/status/1/photo/1"))
	assert.True(t, IsPlatformLink("https://x.com/foo/status/1"))
	assert.True(t, IsPlatformLink("https://t.co/abc"))
	assert.False(t, IsPlatformLink("https://news.example.com/story"))
	assert.False(t, IsPlatformLink("::not a url"))
}

func TestCompareIDs(t *testing.T) {
	assert.Equal(t, -1, CompareIDs("999", "1000"))
	assert.Equal(t, 1, CompareIDs("1790000000000000001", "1790000000000000000"))
	assert.Equal(t, 0, CompareIDs("5", "5"))
}
