// Package extractor decides which image URLs a mention should be analyzed for.
package extractor

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/truemediaorg/detectbot/model"
)

type Extractor struct {
	fetcher PageFetcher
}

func NewExtractor(fetcher PageFetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// Extract returns the mention's media images followed by link preview images,
// deduplicated in discovery order. Link preview problems never fail extraction.
func (e *Extractor) Extract(ctx context.Context, event model.MentionEvent) []string {
	var candidates []string
	candidates = append(candidates, event.CandidateImageURLs...)

	previews, err := e.linkPreviewImages(ctx, event.Links)
	if err != nil {
		log.WithField("sourceId", event.SourceID).Warnf("link preview stage failed, using media only: %v", err)
	} else {
		candidates = append(candidates, previews...)
	}

	var images []string
	seen := map[string]bool{}
	for _, candidate := range candidates {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		if !IsLikelyImageURL(candidate) {
			log.WithField("sourceId", event.SourceID).WithField("imageUrl", candidate).Debug("dropping url that does not look like an image")
			continue
		}
		images = append(images, candidate)
	}
	return images
}

func (e *Extractor) linkPreviewImages(ctx context.Context, links []string) (images []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			images = nil
			err = fmt.Errorf("link preview stage panicked: %v", r)
		}
	}()
	if e.fetcher == nil || len(links) == 0 {
		return nil, nil
	}

	perLink := make([][]string, len(links))
	g, gCtx := errgroup.WithContext(ctx)
	for i, link := range links {
		i, link := i, link
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("preview fetch for %s panicked: %v", link, r)
				}
			}()
			page, err := e.fetcher.FetchPage(gCtx, link)
			if err != nil {
				// a single bad link only costs its own previews
				log.WithField("link", link).Infof("skipping link preview: %v", err)
				return nil
			}
			perLink[i] = ScanPreviewImages(page.Body, page.URL)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, found := range perLink {
		images = append(images, found...)
	}
	return images, nil
}
