package healthcheck

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateDetails requires a non-empty sequence whose entries all carry a
// summary, a diagnosis and a recommendation.
func validateDetails(details []DetailEntry) error {
	if len(details) == 0 {
		return invalid("details", "at least one detail entry is required")
	}
	for i, d := range details {
		err := validate.Struct(d)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return invalid(fmt.Sprintf("details[%d].%s", i, verrs[0].Field()), "must not be empty")
		}
		return invalid(fmt.Sprintf("details[%d]", i), err.Error())
	}
	return nil
}

func validateFollowUp(required bool, date *time.Time) error {
	if required && date == nil {
		return invalid("follow_up_date", "required when follow-up is required")
	}
	if !required && date != nil {
		return invalid("follow_up_date", "must be empty when no follow-up is required")
	}
	return nil
}

// validateNew checks a record submitted for creation.
func validateNew(rec *HealthCheckResult) error {
	if rec.PatientID == uuid.Nil {
		return invalid("patient_id", "is required")
	}
	if rec.StaffID == uuid.Nil {
		return invalid("staff_id", "is required")
	}
	if rec.CheckupDate.IsZero() {
		return invalid("checkup_date", "is required")
	}
	if email := strings.TrimSpace(strVal(rec.PatientEmail)); email != "" {
		if err := validate.Var(email, "email"); err != nil {
			return invalid("patient_email", "must be a valid email address")
		}
	}
	if err := validateDetails(rec.Details); err != nil {
		return err
	}
	return validateFollowUp(rec.FollowUpRequired, rec.FollowUpDate)
}
