package models

import (
	"encoding/json"
	"strings"
)

// ImageRef is one image reference from a search payload. Depending on
// the API format version the wire shape is a bare URL string or an
// object keyed by imageUrl (or url in older payloads), so decoding
// dispatches on the JSON shape.
type ImageRef struct {
	URL string
}

// UnmarshalJSON accepts either a string or an object variant.
func (r *ImageRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.URL = s
		return nil
	}

	var obj struct {
		ImageURL string `json:"imageUrl"`
		URL      string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Unknown shape resolves to no image, never to a failure.
		r.URL = ""
		return nil
	}
	if obj.ImageURL != "" {
		r.URL = obj.ImageURL
	} else {
		r.URL = obj.URL
	}
	return nil
}

// ImageRefList tolerates a single ref, a list of refs, or null.
type ImageRefList []ImageRef

// UnmarshalJSON accepts null, a single variant, or an array of variants.
func (l *ImageRefList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*l = nil
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var refs []ImageRef
		if err := json.Unmarshal(data, &refs); err != nil {
			*l = nil
			return nil
		}
		*l = refs
		return nil
	}

	var single ImageRef
	if err := json.Unmarshal(data, &single); err != nil {
		*l = nil
		return nil
	}
	*l = ImageRefList{single}
	return nil
}

// FirstImageURL resolves the first usable image URL from the given
// lists in priority order, with sizing query parameters stripped.
// Returns empty when no list yields a URL.
func FirstImageURL(lists ...ImageRefList) string {
	for _, list := range lists {
		for _, ref := range list {
			if ref.URL == "" {
				continue
			}
			return normalizeImageURL(ref.URL)
		}
	}
	return ""
}

func normalizeImageURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
