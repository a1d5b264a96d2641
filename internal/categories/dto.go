package categories

// CreateCategoryRequest is the payload for POST /categories.
type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Image       *string `json:"image" validate:"omitempty,url"`
}

// UpdateCategoryRequest is the payload for PUT /categories/{id}.
type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Image       *string `json:"image" validate:"omitempty,url"`
	IsActive    *bool   `json:"isActive"`
}

// CreateSubCategoryRequest is the payload for POST /categories/{id}/subcategories.
type CreateSubCategoryRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// UpdateSubCategoryRequest is the payload for PUT /categories/{id}/subcategories/{subID}.
type UpdateSubCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"isActive"`
}

// ListFilter narrows category and subcategory listings.
type ListFilter struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
}
