package user

type CreateUserRequest struct {
	ClerkID  string `json:"clerkId" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=30"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type UpdateInterestsRequest struct {
	Interests []int `json:"interests"`
}

// MinInterests is the number of categories a user has to pick.
const MinInterests = 4
