package categories

import "time"

// Category groups events in the storefront taxonomy.
type Category struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Description   *string          `json:"description,omitempty"`
	Image         *string          `json:"image,omitempty"`
	IsActive      bool             `json:"isActive"`
	CreatedBy     int64            `json:"createdBy"`
	CreatedByName string           `json:"createdByName,omitempty"`
	UpdatedBy     *int64           `json:"updatedBy,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	SubCategories []SubCategoryRef `json:"subCategories"`
}

// SubCategoryRef is the short form embedded in category payloads.
type SubCategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SubCategory refines a category. Names are unique within their category.
type SubCategory struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"categoryId"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedBy   int64     `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
