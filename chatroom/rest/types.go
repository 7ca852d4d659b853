package rest

// CreateRoomResponse is returned by POST /Chat/CreateRoomId.
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// ActivateRoomRequest is the request body for POST /Chat/ActiveRoomId.
type ActivateRoomRequest struct {
	RoomID string `json:"roomId"`
}

// ActivateRoomResponse is the success body of POST /Chat/ActiveRoomId.
type ActivateRoomResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
