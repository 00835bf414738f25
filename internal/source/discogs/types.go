package discogs

// searchResponse is the body of /database/search
type searchResponse struct {
	Pagination struct {
		Items int `json:"items"`
	} `json:"pagination"`
	Results []searchResult `json:"results"`
}

// searchResult titles are formatted "Artist - Title"
type searchResult struct {
	ID       int      `json:"id"`
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Year     string   `json:"year"`
	Genre    []string `json:"genre"`
	Style    []string `json:"style"`
	MasterID int      `json:"master_id"`
}

// releaseResponse is the body of /releases/{id}
type releaseResponse struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Genres  []string `json:"genres"`
	Styles  []string `json:"styles"`
	Artists []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"artists"`
	Community struct {
		Have int `json:"have"`
		Want int `json:"want"`
	} `json:"community"`
}

type identityResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}
