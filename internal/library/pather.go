// Package library places finished downloads into the organized output
// tree and notifies the library manager about them. The layout is
//
//	{program} ({station})/{author} - ({year}) {album}/{album} - {NN} {title}.{ext}
//
// with every piece dropped when the catalog does not know it.
package library

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/pkg/textnorm"
)

// maxStemRunes caps filename stems; long Czech titles plus the album
// prefix otherwise overflow picky filesystems once the extension and
// sidecar suffixes are added.
const maxStemRunes = 80

// ordinalOnly matches an episode title that says nothing beyond its
// part number ("1. díl" after folding). Such a leaf duplicates the NN
// slot and is dropped from the stem.
var ordinalOnly = regexp.MustCompile(`^\d{1,3}\.?\s*(dil|cast|epizoda)$`)

// Paths is where one episode's artifacts belong. The extension is the
// asset's business: audio keeps whatever the extractor produced, the
// sidecar takes .info.json, the page snapshot .html.
type Paths struct {
	Dir  string `json:"dir"`
	Stem string `json:"stem"`
}

// File joins the stem with an extension inside the target directory.
func (p Paths) File(ext string) string {
	return filepath.Join(p.Dir, p.Stem+ext)
}

// BuildPaths maps an episode's naming chain onto the library layout.
// All components are sanitized: diacritics folded, path-reserved
// characters removed, the stem capped at 80 runes.
func BuildPaths(root string, naming *catalog.EpisodeNaming) Paths {
	dir := root
	if program := programDir(naming.ProgramName, naming.StationCode); program != "" {
		dir = filepath.Join(dir, program)
	}
	if shelf := shelfDir(naming.Author, naming.Year, naming.WorkTitle); shelf != "" {
		dir = filepath.Join(dir, shelf)
	}
	return Paths{Dir: dir, Stem: stem(naming)}
}

// programDir builds "{program} ({station})", degrading to the bare
// program name when the station code is unknown.
func programDir(program, stationCode string) string {
	name := textnorm.SanitizeComponent(program)
	code := textnorm.SanitizeComponent(stationCode)
	if name == "" {
		return code
	}
	if code == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, code)
}

// shelfDir builds "{author} - ({year}) {album}", skipping empty fields.
func shelfDir(author string, year int, album string) string {
	parts := make([]string, 0, 3)
	if a := textnorm.SanitizeComponent(author); a != "" {
		parts = append(parts, a+" -")
	}
	if year > 0 {
		parts = append(parts, fmt.Sprintf("(%d)", year))
	}
	if t := textnorm.SanitizeComponent(album); t != "" {
		parts = append(parts, t)
	}
	joined := strings.Join(parts, " ")
	return strings.TrimSpace(strings.TrimSuffix(joined, "-"))
}

// stem builds "{album} - {NN} {title}". The album prefix is cut from
// the episode title when the title repeats it, and a title that is only
// a part ordinal is dropped entirely, so "Osudy, 3. díl" under the work
// "Osudy" comes out as "Osudy - 03".
func stem(naming *catalog.EpisodeNaming) string {
	album := textnorm.SanitizeComponent(naming.WorkTitle)
	leaf := trimAlbumPrefix(textnorm.SanitizeComponent(naming.EpisodeTitle), album)

	number := 0
	if naming.EpisodeNumber != nil && *naming.EpisodeNumber > 0 {
		number = *naming.EpisodeNumber
	} else if n, ok := textnorm.EpisodeOrdinal(naming.EpisodeTitle); ok {
		number = n
	}

	if strings.EqualFold(leaf, album) || (number > 0 && ordinalOnly.MatchString(textnorm.Normalize(leaf))) {
		leaf = ""
	}

	tail := leaf
	if number > 0 {
		tail = strings.TrimSpace(fmt.Sprintf("%02d %s", number, leaf))
	}

	segments := make([]string, 0, 2)
	if album != "" {
		segments = append(segments, album)
	}
	if tail != "" {
		segments = append(segments, tail)
	}

	s := strings.Join(segments, " - ")
	if s == "" {
		s = fmt.Sprintf("epizoda-%d", naming.EpisodeID)
	}
	return strings.Trim(textnorm.TruncateRunes(s, maxStemRunes), ". ")
}

// trimAlbumPrefix removes a leading album name plus its separator from
// an episode title: "Album, 1. díl" becomes "1. díl". Titles that are
// nothing but the album survive unchanged.
func trimAlbumPrefix(leaf, album string) string {
	if album == "" || len(leaf) <= len(album) {
		return leaf
	}
	if !strings.EqualFold(leaf[:len(album)], album) {
		return leaf
	}
	rest := strings.TrimLeft(leaf[len(album):], " ,;:.–—-")
	if rest == "" {
		return leaf
	}
	return rest
}
