package feed

import (
	"fmt"
)

// ResolveFavicon applies the ordered favicon resolution policy:
// a batch-wide override wins, otherwise one is derived per source from the
// parsed site link via the lookup template. With neither available the feed
// gets no favicon, which is never an error.
func ResolveFavicon(override, siteLink, template string) string {
	if override != "" {
		return override
	}
	if siteLink == "" || template == "" {
		return ""
	}
	return fmt.Sprintf(template, siteLink)
}
