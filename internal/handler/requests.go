package handler

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/iliyamo/shop-auth-api/internal/apperr"
	"github.com/iliyamo/shop-auth-api/internal/auth"
)

// Transport preferences accepted at sign-in and sign-up.
const (
	TransportCookie = "cookie"
	TransportBearer = "bearer"
)

// SignUpRequest is the body of POST /api/auth/signup.
type SignUpRequest struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirmPassword"`
	Roles           []string `json:"roles"`
	IsMfaEnabled    bool     `json:"isMfaEnabled"`
	Transport       string   `json:"transport"`
}

func (r *SignUpRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Transport = strings.ToLower(strings.TrimSpace(r.Transport))
}

// Validate reports every failing field keyed by its json name.
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error("Name is required")),
		validation.Field(&r.Email,
			validation.Required.Error("Email is required"),
			validation.By(emailRule),
		),
		validation.Field(&r.Password,
			validation.Required.Error("Password is required"),
			validation.By(passwordRule),
		),
		validation.Field(&r.ConfirmPassword,
			validation.Required.Error("Password confirmation is required"),
			validation.By(equalsRule(r.Password, "Passwords do not match")),
		),
		validation.Field(&r.Transport, validation.In(TransportCookie, TransportBearer).Error("Transport must be cookie or bearer")),
	)
}

// SignInRequest is the body of POST /api/auth/signin.
type SignInRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Transport string `json:"transport"`
}

func (r *SignInRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Transport = strings.ToLower(strings.TrimSpace(r.Transport))
}

// Validate returns the first failure as a single message; sign-in never
// reports per-field errors.
func (r SignInRequest) Validate() error {
	if err := validation.Validate(r.Email, validation.Required); err != nil {
		return apperr.NewBadInput(msgCredentialsRequired)
	}
	if err := validation.Validate(r.Password, validation.Required); err != nil {
		return apperr.NewBadInput(msgCredentialsRequired)
	}
	if !auth.ValidateEmail(r.Email) {
		return apperr.NewBadInput(msgInvalidEmail)
	}
	if err := validation.Validate(r.Transport, validation.In(TransportCookie, TransportBearer)); err != nil {
		return apperr.NewBadInput("Transport must be cookie or bearer")
	}
	return nil
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RolesRequest is the body of PUT /api/admin/users/:user/roles.
type RolesRequest struct {
	Roles []string `json:"roles"`
}

func (r RolesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Roles, validation.Required.Error("Roles must be a non-empty array")),
	)
}

// RoleRequest is the body of DELETE /api/admin/users/:user/roles.
type RoleRequest struct {
	Role string `json:"role"`
}

func (r RoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role,
			validation.Required.Error("Role is required"),
			validation.By(func(v interface{}) error {
				if s, _ := v.(string); !auth.IsAllowed(s) {
					return errors.New(msgRolesAllowed)
				}
				return nil
			}),
		),
	)
}

// ProfileRequest is the body of POST /api/user/profile.
type ProfileRequest struct {
	Name string `json:"name"`
}

func (r ProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.Required.Error("Name is required"),
			validation.Length(1, 100).Error("Name must be at most 100 characters"),
		),
	)
}

func emailRule(v interface{}) error {
	if s, _ := v.(string); !auth.ValidateEmail(s) {
		return errors.New(msgInvalidEmail)
	}
	return nil
}

func passwordRule(v interface{}) error {
	s, _ := v.(string)
	if ok, reason := auth.ValidatePassword(s); !ok {
		return errors.New(reason)
	}
	return nil
}

func equalsRule(want, msg string) validation.RuleFunc {
	return func(v interface{}) error {
		if s, _ := v.(string); s != want {
			return errors.New(msg)
		}
		return nil
	}
}

// validationError converts ozzo field errors into a BadInput carrying the
// field map. An empty msg takes the message of the first failing field.
// Other errors pass through.
func validationError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make(map[string]string, len(errs))
	keys := make([]string, 0, len(errs))
	for k, e := range errs {
		fields[k] = e.Error()
		keys = append(keys, k)
	}
	if msg == "" {
		sort.Strings(keys)
		msg = fields[keys[0]]
	}
	return apperr.NewBadInput(msg).WithFields(fields)
}
