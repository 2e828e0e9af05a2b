package services

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/server/auth"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 6
)

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen {
		return common.NewValidationError("username must be between 3 and 30 characters")
	}
	return nil
}

// validateEmail accepts a bare address only; "Name <a@b>" forms are rejected.
func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return common.NewValidationError("email address is invalid")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return common.NewValidationError("password must be at least 6 characters")
	}
	return nil
}

// validateNewPassword checks a password typed by a person. A value carrying a
// bcrypt marker would be stored verbatim by EnsureHashed, so it is refused.
func validateNewPassword(password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	if auth.IsPasswordHash(password) {
		return common.NewValidationError("password must not look like a password hash")
	}
	return nil
}

func validateRole(role models.Role) error {
	if !role.Valid() {
		return common.NewValidationError("role must be user or admin")
	}
	return nil
}

// RegisterInput is the self-service sign-up form.
type RegisterInput struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
}

// validate checks the form in a fixed order and reports the first problem.
func (in RegisterInput) validate() error {
	if in.Username == "" || in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return common.NewValidationError("all fields are required")
	}
	if err := validateUsername(in.Username); err != nil {
		return err
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validateNewPassword(in.Password); err != nil {
		return err
	}
	if in.Password != in.ConfirmPassword {
		return common.NewValidationError("passwords do not match")
	}
	return nil
}

// CreateUserInput is an admin-created account. Role is mandatory.
type CreateUserInput struct {
	Username string      `json:"username" form:"username"`
	Email    string      `json:"email" form:"email"`
	Password string      `json:"password" form:"password"`
	Role     models.Role `json:"role" form:"role"`
}

func (in *CreateUserInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
}

func (in CreateUserInput) validate() error {
	if in.Username == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return common.NewValidationError("all fields are required")
	}
	if err := validateUsername(in.Username); err != nil {
		return err
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validateNewPassword(in.Password); err != nil {
		return err
	}
	return validateRole(in.Role)
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	Username *string      `json:"username"`
	Email    *string      `json:"email"`
	Password *string      `json:"password"`
	Role     *models.Role `json:"role"`
}

// apply validates the set fields and copies them onto u.
func (in UpdateUserInput) apply(u *models.User) error {
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validateUsername(username); err != nil {
			return err
		}
		u.Username = username
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if err := validateEmail(email); err != nil {
			return err
		}
		u.Email = email
	}
	if in.Role != nil {
		if err := validateRole(*in.Role); err != nil {
			return err
		}
		u.Role = *in.Role
	}
	return nil
}
