package domain

// Actor is the chat user performing an action.
type Actor struct {
	ID       string
	Username string
	// Elevated is true for administrator-equivalent members.
	Elevated bool
}

// SubjectType differentiates token subjects on the admin API.
type SubjectType string

const SubjectTypeAdmin SubjectType = "ADMIN"
