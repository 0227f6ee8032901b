package model

// Member is one (email, group) membership row. An email may appear in any
// number of rows; there is no uniqueness constraint beyond the pair itself.
type Member struct {
	Email string
	Group string
}
