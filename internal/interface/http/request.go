package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type assessmentRequest struct {
	Subject    string     `json:"subject" validate:"max=200"`
	Topic      string     `json:"topic" validate:"required,max=200"`
	Score      *float64   `json:"score" validate:"required,gte=0,lte=1"`
	OccurredAt *time.Time `json:"occurred_at"`
}

type studySessionRequest struct {
	Subject         string     `json:"subject" validate:"max=200"`
	Topic           string     `json:"topic" validate:"required,max=200"`
	DurationSeconds int64      `json:"duration_seconds" validate:"required,gt=0"`
	OccurredAt      *time.Time `json:"occurred_at"`
}

type createGoalRequest struct {
	Subject     string `json:"subject" validate:"max=200"`
	Topic       string `json:"topic" validate:"required,max=200"`
	TargetLevel string `json:"target_level" validate:"omitempty,oneof=learning practicing mastered"`
}

// newValidator reports field errors under their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads and validates a request body. Any failure is a
// shared validation error.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return shared.ValidationError("http", "decode", "request body is required")
		case errors.As(err, &maxErr):
			return shared.ValidationError("http", "decode", "request body is too large")
		default:
			return shared.ValidationError("http", "decode", "invalid JSON: "+err.Error())
		}
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return shared.ValidationError("http", "validate", err.Error())
		}
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fieldMessage(fe)
		}
		return shared.ValidationError("http", "validate", strings.Join(msgs, "; "))
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gt", "gte", "lt", "lte", "max", "min":
		return fmt.Sprintf("%s fails %s=%s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY PARAMETERS
// ══════════════════════════════════════════════════════════════════════════════

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.ValidationError("http", "query", key+" must be an integer")
	}
	return v, nil
}

// queryBool parses a boolean query parameter, returning def when absent.
func queryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, shared.ValidationError("http", "query", key+" must be a boolean")
	}
	return v, nil
}

func userIDFrom(r *http.Request) string {
	return handlers.UserIDFrom(r.Context())
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
