// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered portal account. The three document locators are
// mandatory at registration and replaced independently afterwards.
type User struct {
	ID           int64
	FullName     string
	Email        string
	PasswordHash string
	Phone        string
	Gender       string
	Course       string
	Address      string
	About        string

	ProfilePhoto    *string
	ResumeFile      *string
	CoverLetterFile *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileFields are the user-editable profile columns.
type ProfileFields struct {
	FullName string
	Email    string
	Phone    string
	Gender   string
	Course   string
	Address  string
	About    string
}

// Documents groups the three profile document locators. A nil entry means
// "keep what is stored".
type Documents struct {
	ProfilePhoto    *string
	ResumeFile      *string
	CoverLetterFile *string
}

// Profile returns the editable fields of u.
func (u *User) Profile() ProfileFields {
	return ProfileFields{
		FullName: u.FullName,
		Email:    u.Email,
		Phone:    u.Phone,
		Gender:   u.Gender,
		Course:   u.Course,
		Address:  u.Address,
		About:    u.About,
	}
}
