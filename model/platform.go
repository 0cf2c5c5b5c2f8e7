package model

import (
	"fmt"
	"strings"
)

// Platform identifies where a mention came from. It is stored verbatim on
// every detection record and keys the mention cursor.
type Platform string

const PlatformX Platform = "X"

// platformAliases maps lowercased spellings found in older rows and config to
// the canonical value.
var platformAliases = map[string]Platform{
	"x":       PlatformX,
	"twitter": PlatformX,
}

func ParsePlatform(s string) (Platform, error) {
	if p, ok := platformAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown platform: %q", s)
}
