// Package forms turns raw form values into typed inputs. Every value is
// trimmed; the first failing rule of each field yields one message.
package forms

import (
	"errors"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
	"github.com/go-playground/validator/v10"
)

// Courses lists the selectable courses in display order.
var Courses = []string{
	"PHP Full Stack",
	"Frontend Development",
	"Backend Development",
	"Data Structures",
	"UI/UX Basics",
}

var Genders = []string{"Male", "Female", "Other"}

const (
	MsgFullName         = "Full name must be at least 3 characters."
	MsgEmail            = "Please provide a valid email address."
	MsgPassword         = "Password must be at least 8 characters."
	MsgPhone            = "Please provide a valid phone number."
	MsgGender           = "Please select a valid gender."
	MsgCourse           = "Please select a valid course."
	MsgAddress          = "Address is required."
	MsgAbout            = "About section is required."
	MsgTitle            = "Project title is required."
	MsgDescription      = "Project description is required."
	MsgTechnologiesNew  = "Please add technologies used."
	MsgTechnologiesEdit = "Technologies are required."
	MsgLogin            = "Please enter valid login details."
)

var phonePattern = regexp.MustCompile(`^[0-9+\-() ]{7,20}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("course", func(fl validator.FieldLevel) bool {
		return slices.Contains(Courses, fl.Field().String())
	})
	return v
}

type registrationForm struct {
	FullName string `validate:"min=3"`
	Email    string `validate:"email"`
	Password string `validate:"min=8"`
	Phone    string `validate:"phone"`
	Gender   string `validate:"oneof=Male Female Other"`
	Course   string `validate:"course"`
	Address  string `validate:"required"`
	About    string `validate:"required"`
}

type profileForm struct {
	FullName string `validate:"min=3"`
	Email    string `validate:"email"`
	Phone    string `validate:"phone"`
	Gender   string `validate:"oneof=Male Female Other"`
	Course   string `validate:"course"`
	Address  string `validate:"required"`
	About    string `validate:"required"`
}

type projectForm struct {
	Title        string `validate:"required"`
	Description  string `validate:"required"`
	Technologies string `validate:"required"`
}

var fieldMessages = map[string]string{
	"FullName":    MsgFullName,
	"Email":       MsgEmail,
	"Password":    MsgPassword,
	"Phone":       MsgPhone,
	"Gender":      MsgGender,
	"Course":      MsgCourse,
	"Address":     MsgAddress,
	"About":       MsgAbout,
	"Title":       MsgTitle,
	"Description": MsgDescription,
}

// check validates s and renders failures in field order. overrides replaces
// the message of individual fields.
func check(s any, overrides map[string]string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var out common.ValidationErrors
	for _, fe := range fieldErrs {
		if msg, ok := overrides[fe.Field()]; ok {
			out.Add(msg)
			continue
		}
		out.Add(fieldMessages[fe.Field()])
	}
	return out.Err()
}

func field(v url.Values, key string) string {
	return strings.TrimSpace(v.Get(key))
}

// emailField reads the email in the lower-case form accounts are keyed by.
func emailField(v url.Values) string {
	return strings.ToLower(field(v, "email"))
}

func profileFields(v url.Values) models.ProfileFields {
	return models.ProfileFields{
		FullName: field(v, "full_name"),
		Email:    emailField(v),
		Phone:    field(v, "phone"),
		Gender:   field(v, "gender"),
		Course:   field(v, "course"),
		Address:  field(v, "address"),
		About:    field(v, "about"),
	}
}

// Registration is a parsed sign-up form. The password is taken verbatim.
type Registration struct {
	Fields   models.ProfileFields
	Password string
}

// ParseRegistration reads a sign-up form. The returned error, if any, is a
// common.ValidationErrors.
func ParseRegistration(v url.Values) (Registration, error) {
	f := profileFields(v)
	password := v.Get("password")

	err := check(registrationForm{
		FullName: f.FullName, Email: f.Email, Password: password, Phone: f.Phone,
		Gender: f.Gender, Course: f.Course, Address: f.Address, About: f.About,
	}, nil)
	return Registration{Fields: f, Password: password}, err
}

// ParseProfile reads the update_profile form.
func ParseProfile(v url.Values) (models.ProfileFields, error) {
	f := profileFields(v)
	err := check(profileForm{
		FullName: f.FullName, Email: f.Email, Phone: f.Phone,
		Gender: f.Gender, Course: f.Course, Address: f.Address, About: f.About,
	}, nil)
	return f, err
}

type ProjectMode int

const (
	ProjectCreate ProjectMode = iota
	ProjectUpdate
)

// ParseProject reads the title, description and technologies of a project
// form. Create and update word the missing-technologies message differently.
func ParseProject(v url.Values, mode ProjectMode) (models.ProjectFields, error) {
	f := models.ProjectFields{
		Title:        field(v, "title"),
		Description:  field(v, "description"),
		Technologies: field(v, "technologies"),
	}

	tech := MsgTechnologiesNew
	if mode == ProjectUpdate {
		tech = MsgTechnologiesEdit
	}
	err := check(projectForm(f), map[string]string{"Technologies": tech})
	return f, err
}

// ParseLogin reads a login form.
func ParseLogin(v url.Values) (email, password string, err error) {
	email = emailField(v)
	password = v.Get("password")
	if !ValidEmail(email) || password == "" {
		return email, password, common.ValidationErrors{MsgLogin}
	}
	return email, password, nil
}

// ValidEmail reports whether s is a syntactically valid address.
func ValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// ID reads a numeric identifier. Missing or malformed values yield 0, which
// never matches a stored row.
func ID(v url.Values, key string) int64 {
	id, err := strconv.ParseInt(field(v, key), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
