package validation

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/impromptu/api.impromptu.app/utils"
)

// Input limits. Answer limits depend on the question type, poll answers are
// checked against the option list instead.
const (
	UserIDMin       = 3
	UserIDMax       = 20
	PasswordMax     = 64
	QuestionTextMax = 500
	OptionTextMax   = 64
	MinPollOptions  = 2
	MaxPollOptions  = 5
	OneWordMax      = 25
	DescriptiveMax  = 1000
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	checkErr(v.RegisterValidation("room_code", fromAlphabet(utils.RoomCodeAlphabet)))
	checkErr(v.RegisterValidation("alias", fromAlphabet(utils.AliasAlphabet)))
	checkErr(v.RegisterValidation("user_id", validUserID))

	return v
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

func fromAlphabet(alphabet string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return false
		}
		for i := 0; i < len(s); i++ {
			if strings.IndexByte(alphabet, s[i]) < 0 {
				return false
			}
		}
		return true
	}
}

// user ids are stored lowercase, ascii letters, digits and _ . - only.
func validUserID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '.' || c == '-':
		default:
			return false
		}
	}
	return true
}

type Credentials struct {
	UserID   string `validate:"required,min=3,max=20,user_id"`
	Password string `validate:"required,max=64"`
}

type QuestionInput struct {
	RoomCode string   `validate:"required,len=6,room_code"`
	Alias    string   `validate:"required,len=5,alias"`
	Text     string   `validate:"required,max=500"`
	Type     string   `validate:"required,oneof=poll one_word descriptive"`
	Options  []string `validate:"-"`
}

type AnswerInput struct {
	QuestionID string `validate:"required"`
	Alias      string `validate:"required,len=5,alias"`
	Text       string `validate:"required"`
}

func Struct(v interface{}) error {
	return validate.Struct(v)
}

// NormalizeUserID lowercases the id and strips all whitespace, matching how
// signup forms have always mangled it.
func NormalizeUserID(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

// NormalizeRoomCode upper-cases a code so joins are case-insensitive.
func NormalizeRoomCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CleanOptions trims options and drops blank ones, preserving order.
func CleanOptions(options []string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// CheckPollOptions validates a cleaned option list. Lengths count runes,
// the same way the validator tags do.
func CheckPollOptions(options []string) bool {
	if len(options) < MinPollOptions || len(options) > MaxPollOptions {
		return false
	}
	for _, o := range options {
		if utf8.RuneCountInString(o) > OptionTextMax {
			return false
		}
	}
	return true
}

// OptionIndex returns the index of text in options, or -1.
func OptionIndex(options []string, text string) int {
	for i, o := range options {
		if o == text {
			return i
		}
	}
	return -1
}

// CheckAnswerText enforces the per-type length caps for free text answers.
// Caps count runes, not bytes, so multibyte answers are not short-changed.
func CheckAnswerText(questionType, text string) bool {
	length := utf8.RuneCountInString(text)
	switch questionType {
	case "one_word":
		return length > 0 && length <= OneWordMax
	case "descriptive":
		return length > 0 && length <= DescriptiveMax
	}
	return length > 0
}

// Percent returns round(100*votes/total), or 0 when total is 0.
func Percent(votes, total int32) int32 {
	if total == 0 {
		return 0
	}
	return int32(math.Round(float64(votes) * 100 / float64(total)))
}
