package models

import "time"

// Media types stored in cat_media.media_type.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// Listing statuses.
const (
	StatusAvailable = "available"
	StatusAdopted   = "adopted"
)

// CatCondition is the structured health-condition record attached to a listing.
type CatCondition struct {
	NutritionalIssues     bool `json:"nutritionalIssues,omitempty"`
	DentalProblems        bool `json:"dentalProblems,omitempty"`
	RespiratoryInfections bool `json:"respiratoryInfections,omitempty"`
	ParasiticInfections   bool `json:"parasiticInfections,omitempty"`
	ChronicDiseases       bool `json:"chronicDiseases,omitempty"`
	HeartConditions       bool `json:"heartConditions,omitempty"`
	JointIssues           bool `json:"jointIssues,omitempty"`
	SkinConditions        bool `json:"skinConditions,omitempty"`
	BehavioralDisorders   bool `json:"behavioralDisorders,omitempty"`
	Normal                bool `json:"normal,omitempty"`
}

// CatContact holds the uploader's contact channels for a listing.
type CatContact struct {
	Phone    string `json:"phone,omitempty"`
	Facebook string `json:"facebook,omitempty"`
	Email    string `json:"email,omitempty"`
}

// CatMedia is one stored media item of a listing. At most one row per cat
// carries IsPrimary=true; the primary row drives the card thumbnail.
type CatMedia struct {
	ID        string    `json:"id"`
	CatID     string    `json:"cat_id"`
	FilePath  string    `json:"file_path"`
	MediaType string    `json:"media_type"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// CatListing is a single adoption post.
type CatListing struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Breed       string        `json:"breed,omitempty"`
	Gender      string        `json:"gender,omitempty"`
	Age         string        `json:"age,omitempty"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Condition   *CatCondition `json:"condition,omitempty"`
	Contact     *CatContact   `json:"contact,omitempty"`
	Status      string        `json:"status,omitempty"`
	IsHidden    bool          `json:"is_hidden,omitempty"`
	UserID      string        `json:"user_id"`
	CreatedAt   time.Time     `json:"created_at"`

	// Derived fields, filled when listings are read with their media.
	ImageURL         string     `json:"image_url,omitempty"`
	Media            []CatMedia `json:"media,omitempty"`
	UploaderUsername string     `json:"uploader_username,omitempty"`
}

// CatReport is one user's report against one listing, unique per (cat, user).
type CatReport struct {
	ID        string    `json:"id"`
	CatID     string    `json:"cat_id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
