package domain

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type nicknameInput struct {
	Nickname string `validate:"min=3,max=20"`
}

// ValidateNickname enforces the 3-20 character rule. Length counts runes.
func ValidateNickname(nickname string) error {
	if err := validate.Struct(nicknameInput{Nickname: nickname}); err != nil {
		return ErrInvalidNickname
	}
	return nil
}

// ValidateQuiz checks struct constraints and the per-type correctness rules.
func ValidateQuiz(q Quiz) error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("%w: duplicate question %s", ErrInvalidQuiz, question.ID)
		}
		seen[question.ID] = struct{}{}

		correct := 0
		options := make(map[string]struct{}, len(question.Options))
		for _, opt := range question.Options {
			if _, dup := options[opt.ID]; dup {
				return fmt.Errorf("%w: question %s repeats option %s", ErrInvalidQuiz, question.ID, opt.ID)
			}
			options[opt.ID] = struct{}{}
			if opt.Correct {
				correct++
			}
		}
		switch question.Type {
		case QuestionBoolean:
			if len(question.Options) != 2 {
				return fmt.Errorf("%w: boolean question %s needs two options", ErrInvalidQuiz, question.ID)
			}
			fallthrough
		case QuestionSingle:
			if correct != 1 {
				return fmt.Errorf("%w: question %s needs exactly one correct option", ErrInvalidQuiz, question.ID)
			}
		case QuestionMultiple:
			if correct == 0 {
				return fmt.Errorf("%w: question %s has no correct option", ErrInvalidQuiz, question.ID)
			}
		}
	}
	return nil
}

// OrderedQuestions returns the questions sorted by position; ties keep catalog order.
func OrderedQuestions(q Quiz) []Question {
	out := make([]Question, len(q.Questions))
	copy(out, q.Questions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	for i := range out {
		opts := make([]AnswerOption, len(out[i].Options))
		copy(opts, out[i].Options)
		sort.SliceStable(opts, func(a, b int) bool {
			return opts[a].Position < opts[b].Position
		})
		out[i].Options = opts
	}
	return out
}
