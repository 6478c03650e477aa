package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used for numbers without a leading +
const DefaultPhoneRegion = "US"

// NormalizePhone parses raw and returns it in E.164 form. When strict is
// set the number must also be valid for its region according to the
// numbering plan metadata.
func NormalizePhone(raw, region string, strict bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", withMeta(ErrUnprocessableInput, map[string]any{"phone_number": "is required"})
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid phone number").
			WithTextCode(TextCodeUnprocessableInput).
			WithCode(ErrUnprocessableInput.Code).
			WithMetadata(map[string]any{"phone_number": raw})
	}

	if strict && !phonenumbers.IsValidNumber(num) {
		return "", withMeta(ErrUnprocessableInput, map[string]any{
			"phone_number": raw,
			"reason":       "number is not valid for its region",
		})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
