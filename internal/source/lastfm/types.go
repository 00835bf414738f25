package lastfm

import (
	"bytes"
	"encoding/json"
)

// searchResponse is the body of album.search
type searchResponse struct {
	Results struct {
		AlbumMatches struct {
			Album []searchAlbum `json:"album"`
		} `json:"albummatches"`
		TotalResults string `json:"opensearch:totalResults"`
	} `json:"results"`
}

type searchAlbum struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	MBID   string `json:"mbid"`
	URL    string `json:"url"`
}

// infoResponse is the body of album.getinfo
type infoResponse struct {
	Album albumInfo `json:"album"`
}

type albumInfo struct {
	Name      string  `json:"name"`
	Artist    string  `json:"artist"`
	MBID      string  `json:"mbid"`
	URL       string  `json:"url"`
	Listeners string  `json:"listeners"`
	Playcount string  `json:"playcount"`
	Tags      tagList `json:"tags"`
}

type tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// tagList accepts the three shapes Last.fm uses for "tags": an object with
// a tag array, an object with a single tag object, and "" when untagged.
type tagList []tag

func (l *tagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*l = nil
		return nil
	}

	var wrapper struct {
		Tag json.RawMessage `json:"tag"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	raw := bytes.TrimSpace(wrapper.Tag)
	switch {
	case len(raw) == 0:
		*l = nil
	case raw[0] == '[':
		var tags []tag
		if err := json.Unmarshal(raw, &tags); err != nil {
			return err
		}
		*l = tags
	case raw[0] == '{':
		var t tag
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		*l = tagList{t}
	default:
		*l = nil
	}
	return nil
}

// errorResponse is sent, sometimes with HTTP 200, when a call fails
type errorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// Last.fm error codes, see https://www.last.fm/api/errorcodes
const (
	errInvalidParams  = 6
	errInvalidAPIKey  = 10
	errServiceOffline = 11
	errTemporary      = 16
	errSuspendedKey   = 26
	errRateLimited    = 29
)
