package domain

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Validate checks the descriptor invariants:
//   - name is always required
//   - address is required unless the service is external
//   - externalUrl is required (and must be a URL) when the service is external
func (s Service) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Name,
			validation.Required.Error("name is required"),
			validation.By(notBlank("name")),
		),
		validation.Field(&s.Address,
			validation.When(!s.IsExternal,
				validation.Required.Error("url is required for non-external services"),
				validation.By(notBlank("url")),
			),
		),
		validation.Field(&s.ExternalURL,
			validation.When(s.IsExternal,
				validation.Required.Error("externalUrl is required for external services"),
				is.URL,
			),
		),
		validation.Field(&s.Port,
			validation.Min(0),
			validation.Max(65535),
		),
	)
	if err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func notBlank(field string) validation.RuleFunc {
	return func(value interface{}) error {
		v, _ := value.(string)
		if v != "" && strings.TrimSpace(v) == "" {
			return validation.NewError("validation_blank", field+" must not be blank")
		}
		return nil
	}
}
