package config

import (
	"context"

	"github.com/go-playground/validator/v10"

	"tasktracker/internal/validation"
)

var (
	// Validate is shared by every form; it carries the domain rules.
	Validate = newValidator()
	Ctx      = context.Background()
)

func newValidator() *validator.Validate {
	v := validator.New()
	if err := validation.Register(v); err != nil {
		panic(err)
	}
	return v
}
