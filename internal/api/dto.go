package api

// StartResponse is returned by /api/challenge/start.
type StartResponse struct {
	UUID    string   `json:"uuid"`
	Image   string   `json:"image"`   // data URL of the PNG
	Regions []string `json:"regions"` // every selectable cell
}

// VerifyRequest is the JSON body for /api/challenge/verify.
type VerifyRequest struct {
	UUID       string   `json:"uuid"`
	Selections []string `json:"selections"`
}

// VerifyResponse is returned by /api/challenge/verify.
type VerifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
