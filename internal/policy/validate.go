package policy

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// NormalizePolicy fills defaults: one device per rental and no plan exclusion on free content.
func NormalizePolicy(p ContentPolicy) ContentPolicy {
	if p.RentalMaxDevices == 0 {
		p.RentalMaxDevices = 1
	}
	if p.Tier == enums.AccessTierFree {
		p.ExcludeFromPlan = false
	}
	return p
}

// ValidatePolicy checks a normalized policy before it is persisted.
func ValidatePolicy(p ContentPolicy) error {
	details := map[string]string{}
	if err := validate.Struct(p); err != nil {
		collectFieldErrors(details, "", err)
	}
	if p.RentalMaxDevices < 1 {
		details["rental_max_devices"] = "must be at least 1"
	}
	if p.Tier == enums.AccessTierFree && p.ExcludeFromPlan {
		details["exclude_from_plan"] = "must be false for free content"
	}
	if p.OffersRental() {
		if !p.RentalPrice.IsPositive() {
			details["rental_price"] = "must be greater than 0"
		}
		if p.RentalPeriodDays < 1 {
			details["rental_period_days"] = "must be at least 1"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid content policy").WithDetails(details)
	}
	return nil
}

// PreparePolicy normalizes then validates.
func PreparePolicy(p ContentPolicy) (ContentPolicy, error) {
	p = NormalizePolicy(p)
	if err := ValidatePolicy(p); err != nil {
		return ContentPolicy{}, err
	}
	return p, nil
}

// NormalizeSources fills permission and tier defaults without reordering.
func NormalizeSources(sources []VideoSource) []VideoSource {
	out := make([]VideoSource, len(sources))
	for i, src := range sources {
		if src.Permission == "" {
			src.Permission = enums.SourcePermissionWebAndMobile
		}
		if src.RequiredTier == "" {
			src.RequiredTier = enums.AccessTierFree
		}
		src.ServerLabel = strings.TrimSpace(src.ServerLabel)
		out[i] = src
	}
	return out
}

// ValidateSources rejects source lists the resolver must never see, most
// importantly lists with more than one default.
func ValidateSources(sources []VideoSource) error {
	details := map[string]string{}
	defaults := 0
	for i, src := range sources {
		prefix := fmt.Sprintf("sources[%d].", i)
		if err := validate.Struct(src); err != nil {
			collectFieldErrors(details, prefix, err)
		}
		if src.IsDefault {
			defaults++
		}
		switch src.Kind {
		case enums.SourceKindMp4:
			if len(src.QualityURLs) == 0 {
				details[prefix+"quality_urls"] = "is required for mp4 sources"
			}
			if src.DefaultQuality != "" {
				if _, ok := src.QualityURLs[src.DefaultQuality]; !ok {
					details[prefix+"default_quality"] = "must be one of the provided qualities"
				}
			}
		case enums.SourceKindIframe, enums.SourceKindHls:
			if strings.TrimSpace(src.URL) == "" {
				details[prefix+"url"] = "is required"
			}
			if len(src.QualityURLs) > 0 {
				details[prefix+"quality_urls"] = "is only allowed on mp4 sources"
			}
		}
	}
	if defaults > 1 {
		details["sources"] = "at most one source may be marked default"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid video sources").WithDetails(details)
	}
	return nil
}

// PrepareSources normalizes then validates.
func PrepareSources(sources []VideoSource) ([]VideoSource, error) {
	sources = NormalizeSources(sources)
	if err := ValidateSources(sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func collectFieldErrors(details map[string]string, prefix string, err error) {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		details[prefix+"error"] = err.Error()
		return
	}
	for _, fe := range errs {
		details[prefix+fe.Field()] = validationMessage(fe)
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return "must be a valid url"
	}
	return "is invalid"
}
