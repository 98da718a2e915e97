package category

import "time"

const (
	MinNameLength        = 4
	MinDescriptionLength = 10
)

// Category groups challenges and is what users pick as interests.
type Category struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
