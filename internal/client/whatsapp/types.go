package whatsapp

type SendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeDocument MediaType = "document"
)

type SendMediaRequest struct {
	Number    string    `json:"number"`
	MediaType MediaType `json:"mediatype"`
	Media     string    `json:"media"`
	Caption   string    `json:"caption,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
}

// ConnectionStateResponse covers both shapes the gateway has used across
// versions: a top-level state and one nested under instance.
type ConnectionStateResponse struct {
	State    string `json:"state"`
	Instance *struct {
		InstanceName string `json:"instanceName"`
		State        string `json:"state"`
	} `json:"instance"`
}

func (r ConnectionStateResponse) resolvedState() string {
	if r.State != "" {
		return r.State
	}
	if r.Instance != nil && r.Instance.State != "" {
		return r.Instance.State
	}
	return "unknown"
}
