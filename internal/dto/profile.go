package dto

// UpdateProfileRequest carries editable profile fields. A photo may be
// attached as multipart; omitting it keeps the stored one.
type UpdateProfileRequest struct {
	FirstName    *string `form:"first_name" json:"first_name"`
	LastName     *string `form:"last_name" json:"last_name"`
	Email        *string `form:"email" json:"email"`
	Gender       *string `form:"gender" json:"gender"`
	Organization *string `form:"organization" json:"organization"`
	Designation  *string `form:"designation" json:"designation"`
}
