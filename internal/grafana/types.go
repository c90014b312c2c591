package grafana

import "encoding/json"

// DatasourcePayload is the create-datasource request body. Access mode is
// always "proxy" so queries are forwarded server-side to the configured URL.
type DatasourcePayload struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Access string `json:"access"`
	URL    string `json:"url"`
}

// datasourceEnvelope covers both response shapes the API returns: newer
// builds wrap the datasource in a "datasource" object, older ones return it
// at the top level.
type datasourceEnvelope struct {
	ID         int64            `json:"id"`
	Datasource *datasourceInner `json:"datasource"`
}

type datasourceInner struct {
	ID int64 `json:"id"`
}

// ProbeResponse is the raw outcome of a proxy query against a registered
// datasource.
type ProbeResponse struct {
	StatusCode int
	Body       string
	JSON       json.RawMessage // set only when the response is application/json
}
