package ytdlp

// Playlist is the parsed output of a flat-playlist inspection. A URL
// that resolves to a single episode is represented as a playlist with
// one entry.
type Playlist struct {
	Type         string  `json:"_type"`
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	WebURL       string  `json:"webpage_url"`
	Uploader     string  `json:"uploader"`
	ExtractorKey string  `json:"extractor_key"`
	Entries      []Entry `json:"entries"`
}

// Entry is one item of a flat playlist. Flat mode fills only what the
// site exposes on the listing page; absent fields stay zero.
type Entry struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	WebpageURL  string  `json:"webpage_url"`
	Duration    float64 `json:"duration"`
	Description string  `json:"description"`
	UploadDate  string  `json:"upload_date"`
	Uploader    string  `json:"uploader"`
	Series      string  `json:"series"`
	Episode     string  `json:"episode"`
}

// PageURL returns the canonical page URL of the entry, falling back to
// the flat-mode url field.
func (e Entry) PageURL() string {
	if e.WebpageURL != "" {
		return e.WebpageURL
	}
	return e.URL
}

// Info is the subset of a full metadata dump the catalog cares about.
// The raw document is preserved separately for the metadata sidecar.
type Info struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	WebpageURL  string  `json:"webpage_url"`
	Duration    float64 `json:"duration"`
	UploadDate  string  `json:"upload_date"`
	Description string  `json:"description"`
	Series      string  `json:"series"`
	Ext         string  `json:"ext"`
	ACodec      string  `json:"acodec"`
}

// DownloadResult reports where a finished download landed.
type DownloadResult struct {
	FilePath     string // final audio file path after post-move
	InfoJSONPath string // sidecar metadata path, empty if not written
}
