package forms

import (
	"net/http"
	"regexp"
	"strings"

	"example.com/postfeed/internal/validate"
)

var usernameRe = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

const (
	usernameMaxLen = 150
	passwordMinLen = 8

	msgBadUsername      = "Допустимы только буквы, цифры и символы @/./+/-/_"
	msgPasswordTooShort = "Пароль должен содержать не менее 8 символов"
	msgPasswordMismatch = "Пароли не совпадают"
)

type SignupForm struct {
	Form
	Username        string
	Password        string
	PasswordConfirm string
}

func (f *SignupForm) Bind(r *http.Request) error {
	if err := parse(r); err != nil {
		return err
	}
	f.Username = strings.TrimSpace(r.FormValue("username"))
	f.Password = r.FormValue("password1")
	f.PasswordConfirm = r.FormValue("password2")
	return nil
}

func (f *SignupForm) Valid() bool {
	f.Errors = nil
	if err := validate.NotEmpty(f.Username); err != nil {
		f.Check("username", err)
	} else {
		f.Check("username", validate.MaxLength(usernameMaxLen)(f.Username))
		if !usernameRe.MatchString(f.Username) {
			f.AddError("username", msgBadUsername)
		}
	}

	if err := validate.NotEmpty(f.Password); err != nil {
		f.Check("password1", err)
	} else if len([]rune(f.Password)) < passwordMinLen {
		f.AddError("password1", msgPasswordTooShort)
	}
	if f.Password != f.PasswordConfirm {
		f.AddError("password2", msgPasswordMismatch)
	}
	return !f.HasErrors()
}

type LoginForm struct {
	Form
	Username string
	Password string
	Next     string
}

func (f *LoginForm) Bind(r *http.Request) error {
	if err := parse(r); err != nil {
		return err
	}
	f.Username = strings.TrimSpace(r.FormValue("username"))
	f.Password = r.FormValue("password")
	f.Next = r.FormValue("next")
	return nil
}

func (f *LoginForm) Valid() bool {
	f.Errors = nil
	f.Check("username", validate.NotEmpty(f.Username))
	f.Check("password", validate.NotEmpty(f.Password))
	return !f.HasErrors()
}

// SafeNext returns next when it is a local absolute path, "/" otherwise.
func SafeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
