// internal/models/dto.go
package models

import "time"

type EmailAddressDTO struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

// CurrentUserDTO is what the dashboard shell shows on the profile tab.
type CurrentUserDTO struct {
	ID             uint              `json:"id"`
	DisplayName    string            `json:"display_name"`
	PrimaryEmail   string            `json:"primary_email"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	AvatarURL      string            `json:"avatar_url"`
	EmailAddresses []EmailAddressDTO `json:"email_addresses"`
}

// SessionDTO is the signed-in/signed-out view state. User is nil when signed out.
type SessionDTO struct {
	SignedIn bool            `json:"signed_in"`
	User     *CurrentUserDTO `json:"user,omitempty"`
}

func (u User) ToDTO() CurrentUserDTO {
	emails := make([]EmailAddressDTO, len(u.EmailAddresses))
	for i, e := range u.EmailAddresses {
		emails[i] = EmailAddressDTO{
			Address:  e.Address,
			Verified: e.Verified,
		}
	}

	name := u.DisplayName
	if name == "" {
		name = u.Username
	}

	return CurrentUserDTO{
		ID:             u.ID,
		DisplayName:    name,
		PrimaryEmail:   u.Email,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
		AvatarURL:      u.AvatarURL,
		EmailAddresses: emails,
	}
}

// CourseDTO is a course card merged with the learner's progress.
type CourseDTO struct {
	Course
	Progress int `json:"progress"`
}

type CourseSummaryDTO struct {
	Completed       int `json:"completed"`
	InProgress      int `json:"in_progress"`
	AverageProgress int `json:"average_progress"`
}
