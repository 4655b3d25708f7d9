package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"techshop/ent"
)

// number holds the text of a JSON number or string so that bad values are
// reported by validation under their field name instead of failing decoding.
type number string

func (n *number) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		*n = number(strings.TrimSpace(s))
		return nil
	}

	*n = number(b)
	return nil
}

var integral = regexp.MustCompile(`^-?\d+(\.0*)?$`)

func (n number) int() (int64, error) {
	s := string(n)
	if !integral.MatchString(s) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}

	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	return strconv.ParseInt(s, 10, 64)
}

func (n number) money() (ent.Money, error) {
	return ent.ParseMoney(string(n))
}

// moneyLimit is the first amount that does not fit NUMERIC(10,2).
var moneyLimit = decimal.NewFromInt(100_000_000)

func moneyProblem(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "A valid number is required."
	}

	switch {
	case d.IsNegative():
		return "Ensure this value is greater than or equal to 0."
	case !d.Equal(d.Round(2)):
		return "Ensure that there are no more than 2 decimal places."
	case d.Abs().GreaterThanOrEqual(moneyLimit):
		return "Ensure that there are no more than 8 digits before the decimal point."
	}

	return ""
}

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	mustRegister(v, "money", func(fl validator.FieldLevel) bool {
		return moneyProblem(fl.Field().String()) == ""
	})

	mustRegister(v, "integer", func(fl validator.FieldLevel) bool {
		_, err := number(fl.Field().String()).int()
		return err == nil
	})

	mustRegister(v, "imin", func(fl validator.FieldLevel) bool {
		return compareInt(fl, func(n, limit int64) bool { return n >= limit })
	})

	mustRegister(v, "imax", func(fl validator.FieldLevel) bool {
		return compareInt(fl, func(n, limit int64) bool { return n <= limit })
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// compareInt passes values that are not integers; the "integer" tag reports those.
func compareInt(fl validator.FieldLevel, ok func(n, limit int64) bool) bool {
	n, err := number(fl.Field().String()).int()
	if err != nil {
		return true
	}

	limit, err := strconv.ParseInt(fl.Param(), 10, 64)
	if err != nil {
		return false
	}

	return ok(n, limit)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "notblank":
		return "This field may not be blank."
	case "integer":
		return "A valid integer is required."
	case "imin", "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "imax", "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "money":
		return moneyProblem(fmt.Sprint(fe.Value()))
	case "oneof":
		return fmt.Sprintf("\"%v\" is not a valid choice.", fe.Value())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return "This list may not be empty."
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	}

	return "Invalid value."
}

// check validates v and reports failures per JSON field.
func (s *Server) check(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}

	fe := fieldErrors{}
	for _, e := range ves {
		field := e.Field()
		if i := strings.IndexByte(field, '['); i > 0 {
			field = field[:i]
		}
		fe.add(field, validationMessage(e))
	}

	return fe
}

// payload is a decoded request object, before it is bound to an input struct.
type payload map[string]json.RawMessage

// over returns base with the keys of p replaced.
func (p payload) over(base payload) payload {
	merged := make(payload, len(base)+len(p))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range p {
		merged[k] = v
	}

	return merged
}

func (p payload) has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p payload) isNull(key string) bool {
	return bytes.Equal(bytes.TrimSpace(p[key]), []byte("null"))
}

func toPayload(v interface{}) payload {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		panic(err)
	}

	return p
}

// readPayload parses a JSON object body. An empty body is an empty object.
func readPayload(c *fiber.Ctx) (payload, error) {
	body := bytes.TrimSpace(c.Body())

	p := payload{}
	if len(body) == 0 {
		return p, nil
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "JSON parse error - "+err.Error())
	}

	if _, ok := v.(map[string]interface{}); !ok {
		return nil, fieldErrors{nonFieldErrors: {
			fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", jsonTypeName(v)),
		}}
	}

	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "JSON parse error - "+err.Error())
	}

	return p, nil
}

func jsonTypeName(v interface{}) string {
	switch v.(type) {
	case []interface{}:
		return "list"
	case string:
		return "str"
	case float64:
		return "int"
	case bool:
		return "bool"
	case nil:
		return "NoneType"
	}

	return fmt.Sprintf("%T", v)
}

// trimmed strips surrounding whitespace from an optional text field.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}

	t := strings.TrimSpace(*s)
	return &t
}

// nullable lists the fields that accept an explicit JSON null.
var nullable = map[string]bool{
	"description": true,
	"brand":       true,
	"comment":     true,
	"volume":      true,
	"image":       true,
	"model_3d":    true,
}

func (p payload) nulls() error {
	fe := fieldErrors{}
	for k := range p {
		if !nullable[k] && p.isNull(k) {
			fe.add(k, "This field may not be null.")
		}
	}

	if len(fe) != 0 {
		return fe
	}
	return nil
}

// bind decodes p into dst and validates it.
func (s *Server) bind(p payload, dst interface{}) error {
	if err := p.nulls(); err != nil {
		return err
	}

	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = json.Unmarshal(b, dst)

	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return fieldErrors{te.Field: {typeMessage(te)}}
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "JSON parse error - "+err.Error())
	}

	return s.check(dst)
}

func typeMessage(te *json.UnmarshalTypeError) string {
	switch te.Type.Kind() {
	case reflect.String:
		return "Not a valid string."
	case reflect.Slice:
		return fmt.Sprintf("Expected a list of items but got type \"%s\".", te.Value)
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "A valid integer is required."
	case reflect.Ptr:
		if te.Type.Elem().Kind() == reflect.String {
			return "Not a valid string."
		}
	}

	return "Invalid value."
}
