package domain

// CustomerContact is read from the externally owned customer directory for receipts.
type CustomerContact struct {
	Ref   string `json:"ref"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
