package twitter

type MediaType string

const (
	MediaTypePhoto       MediaType = "photo"
	MediaTypeAnimatedGIF MediaType = "animated_gif"
	MediaTypeVideo       MediaType = "video"
)

// Photos are analyzed directly, video and gifs through their preview frame.
func (m MediaType) Analyzable() bool {
	switch m {
	case MediaTypePhoto, MediaTypeAnimatedGIF, MediaTypeVideo:
		return true
	default:
		return false
	}
}

type TweetReferenceType string

const (
	TweetReferenceRepliedTo TweetReferenceType = "replied_to"
	TweetReferenceQuoted    TweetReferenceType = "quoted"
)
