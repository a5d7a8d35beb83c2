package presencesvc

// Entry is one viewer's presence record within an event.
type Entry struct {
	UserID      string `json:"userId"`
	Country     string `json:"country"`
	CountryName string `json:"countryName"`
	LastSeenMs  int64  `json:"lastSeen"`
}

// CountryCount aggregates viewers per country code.
type CountryCount struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

// Summary is the aggregate view pushed to stream subscribers.
type Summary struct {
	Total     int                     `json:"total"`
	Countries map[string]CountryCount `json:"countries"`
}
