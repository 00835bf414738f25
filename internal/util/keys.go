package util

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// AlbumKey builds the composite identity used to index albums: "artist|album".
// Surrounding whitespace is trimmed; case is preserved for display.
func AlbumKey(artist, album string) string {
	return strings.TrimSpace(artist) + "|" + strings.TrimSpace(album)
}

// SplitAlbumKey is the inverse of AlbumKey
func SplitAlbumKey(key string) (artist, album string) {
	artist, album, _ = strings.Cut(key, "|")
	return artist, album
}

// CacheKey returns md5(lower(artist) + "|" + lower(album) + "|" + source) as hex
func CacheKey(artist, album, source string) string {
	h := md5.Sum([]byte(strings.ToLower(artist) + "|" + strings.ToLower(album) + "|" + source))
	return hex.EncodeToString(h[:])
}
