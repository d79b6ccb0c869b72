package models

// Endpoint is a named remote-access target. ID is the opaque identifier used
// as the registry key.
type Endpoint struct {
	ID             string `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	Protocol       string `db:"protocol" json:"protocol"`
	GroupID        string `db:"group_id" json:"group_id,omitempty"`
	MaxConnections int    `db:"max_connections" json:"max_connections,omitempty"`
}

// EndpointGroup is a set of endpoints that may be balanced over.
type EndpointGroup struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Type string `db:"type" json:"type"`
}

// Parameter is one named connection parameter of an endpoint.
type Parameter struct {
	Name  string `db:"parameter_name" json:"name"`
	Value string `db:"parameter_value" json:"value"`
}

// ClientInfo describes the display capabilities of the requesting client.
type ClientInfo struct {
	OptimalWidth   int      `json:"width,omitempty"`
	OptimalHeight  int      `json:"height,omitempty"`
	OptimalDPI     int      `json:"dpi,omitempty"`
	AudioMimetypes []string `json:"audio,omitempty"`
	VideoMimetypes []string `json:"video,omitempty"`
}
