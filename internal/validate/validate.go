// Package validate holds field validators shared by the forms.
package validate

import "fmt"

const msgFillIn = "Заполните поле"

// ValidationError reports a rejected field value.
type ValidationError struct {
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (value=%q)", e.Message, e.Value)
}

// NotEmpty rejects the empty string.
func NotEmpty(value string) error {
	if value == "" {
		return &ValidationError{Value: value, Message: msgFillIn}
	}
	return nil
}

// MaxLength rejects values longer than n characters.
func MaxLength(n int) func(string) error {
	return func(value string) error {
		if len([]rune(value)) > n {
			return &ValidationError{
				Value:   value,
				Message: fmt.Sprintf("Убедитесь, что это значение содержит не более %d символов", n),
			}
		}
		return nil
	}
}
