package deezer

// searchResponse is the body of /search/album
type searchResponse struct {
	Data  []albumResult `json:"data"`
	Total int           `json:"total"`
	Error *apiError     `json:"error,omitempty"`
}

type albumResult struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	GenreID *int   `json:"genre_id"`
	Artist  struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

// albumResponse is the part of /album/{id} used for API confidence
type albumResponse struct {
	ID    int       `json:"id"`
	Fans  int       `json:"fans"`
	Error *apiError `json:"error,omitempty"`
}

type genreResponse struct {
	ID    int       `json:"id"`
	Name  string    `json:"name"`
	Error *apiError `json:"error,omitempty"`
}

// apiError is returned with HTTP 200 for quota and lookup failures
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Deezer error codes, see https://developers.deezer.com/api/errors
const (
	errCodeQuota    = 4
	errCodeNotFound = 800
)
