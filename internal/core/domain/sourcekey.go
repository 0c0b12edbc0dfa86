package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// ReviewSuffix marks the review-lane variant of a sourceKey.
const ReviewSuffix = "#review"

var (
	bracketedID = regexp.MustCompile(`\[([A-Za-z0-9_-]{6,})\]\s*$`)
	validID     = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)
)

// SourceKey builds the stable `channel/videoId` identity used for idempotency
// and store addressing.
func SourceKey(channel, videoID string) (string, error) {
	channel = strings.TrimSpace(channel)
	videoID = strings.TrimSpace(videoID)
	if channel == "" || strings.Contains(channel, "/") {
		return "", fmt.Errorf("%w: channel %q", ErrUnstableIdentity, channel)
	}
	if !validID.MatchString(videoID) {
		return "", fmt.Errorf("%w: video id %q", ErrUnstableIdentity, videoID)
	}
	return channel + "/" + videoID, nil
}

// ReviewKey returns the review-lane variant of a sourceKey.
func ReviewKey(sourceKey string) string {
	return sourceKey + ReviewSuffix
}

// BaseKey strips the review-lane suffix, if any.
func BaseKey(storedKey string) string {
	return strings.TrimSuffix(storedKey, ReviewSuffix)
}

// IsReviewKey reports whether a stored key addresses the review lane.
func IsReviewKey(storedKey string) bool {
	return strings.HasSuffix(storedKey, ReviewSuffix)
}

// VideoIDFromFolder extracts the trailing `[videoId]` from a folder name.
func VideoIDFromFolder(folder string) (string, bool) {
	m := bracketedID.FindStringSubmatch(strings.TrimSpace(folder))
	if m == nil {
		return "", false
	}
	return m[1], true
}
