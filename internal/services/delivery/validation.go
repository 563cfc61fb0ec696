package delivery

import (
	"strings"
	"unicode"

	"teapot/internal/models"
)

// PhoneDigits is the exact length of a valid phone number
const PhoneDigits = 10

// Field names used in validation errors
const (
	FieldPhone   = "phone"
	FieldAddress = "address"
	FieldCart    = "cart"
)

// Inline messages shown next to the form fields
const (
	PhoneMessage   = "Phone number must be exactly 10 digits"
	AddressMessage = "Address is required"
	CartMessage    = "Please add items to your order first!"
)

// FieldError is a single invalid field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a submission
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// Messages returns field name to message
func (e *ValidationError) Messages() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		out[fe.Field] = fe.Message
	}
	return out
}

// NormalizePhone drops every non-digit and keeps at most 10 digits
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if b.Len() == PhoneDigits {
			break
		}
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeAddress trims surrounding whitespace
func NormalizeAddress(raw string) string {
	return strings.TrimSpace(raw)
}

// Validate checks a submission. An empty cart blocks submission as well.
func Validate(info models.DeliveryInfo, cartEmpty bool) error {
	var errs []FieldError

	if len(NormalizePhone(info.Phone)) != PhoneDigits {
		errs = append(errs, FieldError{Field: FieldPhone, Message: PhoneMessage})
	}
	if NormalizeAddress(info.Address) == "" {
		errs = append(errs, FieldError{Field: FieldAddress, Message: AddressMessage})
	}
	if cartEmpty {
		errs = append(errs, FieldError{Field: FieldCart, Message: CartMessage})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Normalize applies the per-field normalization used while typing
func Normalize(info models.DeliveryInfo) models.DeliveryInfo {
	return models.DeliveryInfo{
		Address: NormalizeAddress(info.Address),
		Phone:   NormalizePhone(info.Phone),
	}
}

// Form is the delivery form state: the normalized values plus the inline
// error for each field, refreshed on every keystroke
type Form struct {
	info         models.DeliveryInfo
	phoneError   string
	addressError string
}

// SetPhone normalizes the typed phone number. While typing, an empty field is not an error.
func (f *Form) SetPhone(raw string) string {
	f.info.Phone = NormalizePhone(raw)
	if f.info.Phone != "" && len(f.info.Phone) != PhoneDigits {
		f.phoneError = PhoneMessage
	} else {
		f.phoneError = ""
	}
	return f.phoneError
}

// SetAddress trims the typed address
func (f *Form) SetAddress(raw string) string {
	f.info.Address = NormalizeAddress(raw)
	if f.info.Address == "" {
		f.addressError = AddressMessage
	} else {
		f.addressError = ""
	}
	return f.addressError
}

// Info returns the current values
func (f *Form) Info() models.DeliveryInfo {
	return f.info
}

// Errors returns the inline messages currently shown, keyed by field
func (f *Form) Errors() map[string]string {
	out := make(map[string]string, 2)
	if f.phoneError != "" {
		out[FieldPhone] = f.phoneError
	}
	if f.addressError != "" {
		out[FieldAddress] = f.addressError
	}
	return out
}

// Submit runs the submission-time checks and records their messages on the form
func (f *Form) Submit(cartEmpty bool) error {
	err := Validate(f.info, cartEmpty)
	if verr, ok := err.(*ValidationError); ok {
		msgs := verr.Messages()
		f.phoneError = msgs[FieldPhone]
		f.addressError = msgs[FieldAddress]
	}
	return err
}

// Reset clears values and messages
func (f *Form) Reset() {
	*f = Form{}
}
