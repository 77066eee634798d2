package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the actor lacks a required permission.
	ErrForbidden = errors.New("forbidden")
)

// UserSafeMessage maps internal errors to text that may be shown to an
// operator. Unknown errors pass through verbatim: backend rejection messages
// are surfaced as-is rather than reinterpreted.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Data tidak ditemukan"
	case errors.Is(err, ErrForbidden):
		return "Anda tidak memiliki akses untuk aksi ini"
	case errors.Is(err, ErrInvalidCredentials):
		return "Email atau kata sandi salah"
	default:
		return err.Error()
	}
}
