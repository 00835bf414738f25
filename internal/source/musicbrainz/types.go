package musicbrainz

// releaseSearchResponse is the body of /release/?query=...
type releaseSearchResponse struct {
	Releases []release `json:"releases"`
	Count    int       `json:"count"`
}

type release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Score        int            `json:"score"`
	Date         string         `json:"date"`
	Country      string         `json:"country"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Tags         []tag          `json:"tags"`
	Genres       []tag          `json:"genres"`
}

type artistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tags []tag  `json:"tags"`
}

// tag is a folksonomy tag with its vote count
type tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// creditedName joins a multi-artist credit the way MusicBrainz displays it
func creditedName(credits []artistCredit) string {
	var name string
	for _, c := range credits {
		n := c.Name
		if n == "" {
			n = c.Artist.Name
		}
		name += n + c.JoinPhrase
	}
	return name
}
