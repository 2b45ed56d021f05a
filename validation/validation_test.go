package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name     string
		votes    int32
		total    int32
		expected int32
	}{
		{"no answers", 0, 0, 0},
		{"no votes", 0, 5, 0},
		{"all votes", 1, 1, 100},
		{"half", 1, 2, 50},
		{"third rounds down", 1, 3, 33},
		{"two thirds rounds up", 2, 3, 67},
		{"single voter landslide", 1, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Percent(tt.votes, tt.total))
		})
	}
}

func TestNormalizeUserID(t *testing.T) {
	assert.Equal(t, "alice", NormalizeUserID("Alice"))
	assert.Equal(t, "shadow_runner", NormalizeUserID(" Shadow_Runner\t"))
	assert.Equal(t, "ab", NormalizeUserID("a\nb"))
	assert.Equal(t, "", NormalizeUserID("   "))
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "7K9P2M", NormalizeRoomCode("7k9p2m"))
	assert.Equal(t, "7K9P2M", NormalizeRoomCode("  7K9p2M "))
}

func TestCleanOptions(t *testing.T) {
	assert.Equal(t, []string{"Coffee", "Tea"}, CleanOptions([]string{" Coffee", "", "Tea ", "   "}))
	assert.Empty(t, CleanOptions([]string{"", " "}))
}

func TestCheckPollOptions(t *testing.T) {
	tests := []struct {
		name    string
		options []string
		ok      bool
	}{
		{"one option", []string{"Coffee"}, false},
		{"two options", []string{"Coffee", "Tea"}, true},
		{"five options", []string{"a", "b", "c", "d", "e"}, true},
		{"six options", []string{"a", "b", "c", "d", "e", "f"}, false},
		{"oversize option", []string{"Coffee", strings.Repeat("x", OptionTextMax+1)}, false},
		{"multibyte option at cap", []string{"Coffee", strings.Repeat("é", OptionTextMax)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, CheckPollOptions(tt.options))
		})
	}
}

func TestOptionIndex(t *testing.T) {
	options := []string{"Coffee", "Tea"}
	assert.Equal(t, 0, OptionIndex(options, "Coffee"))
	assert.Equal(t, 1, OptionIndex(options, "Tea"))
	assert.Equal(t, -1, OptionIndex(options, "Juice"))
	assert.Equal(t, -1, OptionIndex(nil, "Coffee"))
}

func TestCheckAnswerText(t *testing.T) {
	tests := []struct {
		name         string
		questionType string
		text         string
		ok           bool
	}{
		{"one word at cap", "one_word", strings.Repeat("x", OneWordMax), true},
		{"one word over cap", "one_word", strings.Repeat("x", OneWordMax+1), false},
		{"one word empty", "one_word", "", false},
		{"descriptive at cap", "descriptive", strings.Repeat("x", DescriptiveMax), true},
		{"descriptive over cap", "descriptive", strings.Repeat("x", DescriptiveMax+1), false},
		{"descriptive empty", "descriptive", "", false},
		{"one word multibyte at cap", "one_word", strings.Repeat("é", OneWordMax), true},
		{"one word multibyte over cap", "one_word", strings.Repeat("é", OneWordMax+1), false},
		{"descriptive multibyte at cap", "descriptive", strings.Repeat("語", DescriptiveMax), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, CheckAnswerText(tt.questionType, tt.text))
		})
	}
}

func TestCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		ok    bool
	}{
		{"valid", Credentials{UserID: "alice", Password: "hunter2"}, true},
		{"valid with separators", Credentials{UserID: "shadow_run.ner-7", Password: "x"}, true},
		{"empty user", Credentials{UserID: "", Password: "hunter2"}, false},
		{"empty password", Credentials{UserID: "alice", Password: ""}, false},
		{"too short", Credentials{UserID: "al", Password: "hunter2"}, false},
		{"too long", Credentials{UserID: strings.Repeat("a", UserIDMax+1), Password: "hunter2"}, false},
		{"uppercase rejected", Credentials{UserID: "Alice", Password: "hunter2"}, false},
		{"space rejected", Credentials{UserID: "al ice", Password: "hunter2"}, false},
		{"password too long", Credentials{UserID: "alice", Password: strings.Repeat("x", PasswordMax+1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.creds)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestQuestionInput(t *testing.T) {
	valid := QuestionInput{
		RoomCode: "7K9P2M",
		Alias:    "x3f9q",
		Text:     "Coffee or tea?",
		Type:     "poll",
		Options:  []string{"Coffee", "Tea"},
	}

	tests := []struct {
		name   string
		mutate func(q *QuestionInput)
		ok     bool
	}{
		{"valid poll", func(q *QuestionInput) {}, true},
		{"valid one word", func(q *QuestionInput) { q.Type = "one_word"; q.Options = nil }, true},
		{"valid descriptive", func(q *QuestionInput) { q.Type = "descriptive"; q.Options = nil }, true},
		{"bad type", func(q *QuestionInput) { q.Type = "essay" }, false},
		{"short code", func(q *QuestionInput) { q.RoomCode = "7K9P2" }, false},
		{"code outside alphabet", func(q *QuestionInput) { q.RoomCode = "7K9P0M" }, false},
		{"short alias", func(q *QuestionInput) { q.Alias = "x3f9" }, false},
		{"uppercase alias", func(q *QuestionInput) { q.Alias = "X3F9Q" }, false},
		{"empty text", func(q *QuestionInput) { q.Text = "" }, false},
		{"oversize text", func(q *QuestionInput) { q.Text = strings.Repeat("x", QuestionTextMax+1) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			err := Struct(q)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAnswerInput(t *testing.T) {
	assert.NoError(t, Struct(AnswerInput{QuestionID: "6061d7", Alias: "x3f9q", Text: "Tea"}))
	assert.Error(t, Struct(AnswerInput{QuestionID: "", Alias: "x3f9q", Text: "Tea"}))
	assert.Error(t, Struct(AnswerInput{QuestionID: "6061d7", Alias: "", Text: "Tea"}))
	assert.Error(t, Struct(AnswerInput{QuestionID: "6061d7", Alias: "x3f9q", Text: ""}))
}
