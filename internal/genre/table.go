package genre

// defaultAliases maps spellings and synonyms onto a canonical genre.
// Canonical names map to themselves implicitly.
var defaultAliases = map[string]string{
	"Hip-Hop":             "Hip Hop",
	"Hiphop":              "Hip Hop",
	"Rap":                 "Hip Hop",
	"Electronica":         "Electronic",
	"Electronic/Dance":    "Electronic",
	"Drum and Bass":       "Drum & Bass",
	"Drum 'n' Bass":       "Drum & Bass",
	"DnB":                 "Drum & Bass",
	"Synth-pop":           "Synthpop",
	"Synth Pop":           "Synthpop",
	"Rock and Roll":       "Rock",
	"Rock & Roll":         "Rock",
	"Rock/Pop":            "Rock",
	"Rock/Blues":          "Rock",
	"Prog Rock":           "Progressive Rock",
	"Prog":                "Progressive Rock",
	"Psych Rock":          "Psychedelic Rock",
	"Psychedelic":         "Psychedelic Rock",
	"Postrock":            "Post-Rock",
	"Alt":                 "Alternative",
	"Indie":               "Alternative",
	"Independent":         "Alternative",
	"Jazz Fusion":         "Fusion",
	"Alternative Country": "Alt-Country",
	"Rhythm and Blues":    "R&B",
	"RnB":                 "R&B",
	"Contemporary R&B":    "R&B",
	"Neo Soul":            "Neo-Soul",
	"Postpunk":            "Post-Punk",
	"Classical Music":     "Classical",
	"Film Score":          "Soundtrack",
	"Score":               "Soundtrack",
	"Game Music":          "Soundtrack",
	"Avant-Garde":         "Experimental",
	"Avantgarde":          "Experimental",
	"Unknown":             "Other",
	"Unclassified":        "Other",
	"Various":             "Other",
}

// defaultHierarchy lists the parents of each sub-genre
var defaultHierarchy = map[string][]string{
	"Ambient":     {"Electronic"},
	"Techno":      {"Electronic"},
	"House":       {"Electronic"},
	"Drum & Bass": {"Electronic"},
	"Dubstep":     {"Electronic"},
	"IDM":         {"Electronic"},
	"Trip Hop":    {"Electronic"},
	"Synthpop":    {"Electronic", "Pop"},
	"New Wave":    {"Electronic", "Rock"},

	"Hard Rock":        {"Rock"},
	"Soft Rock":        {"Rock"},
	"Classic Rock":     {"Rock"},
	"Progressive Rock": {"Rock"},
	"Psychedelic Rock": {"Rock"},
	"Punk Rock":        {"Rock", "Punk"},
	"Alternative Rock": {"Rock", "Alternative"},
	"Indie Rock":       {"Rock", "Alternative"},
	"Post-Rock":        {"Rock"},
	"Art Rock":         {"Rock"},
	"Garage Rock":      {"Rock"},
	"Glam Rock":        {"Rock"},
	"Krautrock":        {"Rock", "Experimental"},

	"Bebop":             {"Jazz"},
	"Cool Jazz":         {"Jazz"},
	"Free Jazz":         {"Jazz"},
	"Fusion":            {"Jazz"},
	"Smooth Jazz":       {"Jazz"},
	"Contemporary Jazz": {"Jazz"},

	"Delta Blues":    {"Blues"},
	"Chicago Blues":  {"Blues"},
	"Electric Blues": {"Blues"},
	"Blues Rock":     {"Blues", "Rock"},

	"Country Rock": {"Country", "Rock"},
	"Alt-Country":  {"Country", "Alternative"},
	"Americana":    {"Country", "Folk"},

	"Folk Rock":         {"Folk", "Rock"},
	"Contemporary Folk": {"Folk"},
	"Singer-Songwriter": {"Folk"},

	"Dub":          {"Reggae"},
	"Ska":          {"Reggae"},
	"Rocksteady":   {"Reggae"},
	"Dancehall":    {"Reggae"},
	"Roots Reggae": {"Reggae"},

	"Salsa":      {"Latin"},
	"Cumbia":     {"Latin"},
	"Bachata":    {"Latin"},
	"Merengue":   {"Latin"},
	"Reggaeton":  {"Latin"},
	"Bossa Nova": {"Latin", "Jazz"},

	"Dance Pop":  {"Pop"},
	"Electropop": {"Pop", "Electronic"},
	"Teen Pop":   {"Pop"},

	"Soul":     {"R&B"},
	"Neo-Soul": {"R&B", "Soul"},
	"Funk":     {"R&B"},
	"Motown":   {"R&B", "Soul"},

	"Heavy Metal":       {"Metal"},
	"Death Metal":       {"Metal"},
	"Black Metal":       {"Metal"},
	"Thrash Metal":      {"Metal"},
	"Progressive Metal": {"Metal"},
	"Doom Metal":        {"Metal"},
	"Power Metal":       {"Metal"},

	"Post-Punk":     {"Punk"},
	"Hardcore Punk": {"Punk"},
	"Pop Punk":      {"Punk", "Pop"},

	"Baroque":                {"Classical"},
	"Romantic":               {"Classical"},
	"Contemporary Classical": {"Classical"},
	"Opera":                  {"Classical"},

	"African":        {"World"},
	"Celtic":         {"World"},
	"Indian":         {"World"},
	"Middle Eastern": {"World"},
	"Asian":          {"World"},

	"Noise": {"Experimental"},
}

// standalone canonical genres with neither parents nor aliases
var defaultStandalone = []string{
	"Easy Listening",
	"Vocal",
	"Instrumental",
	"Spoken Word",
	"Gospel",
	"Disco",
	"Hip Hop",
}
