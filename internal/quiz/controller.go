package quiz

import (
	"math"

	"github.com/pkg/errors"
)

// ErrOptionOutOfRange is returned when a selected option does not exist on
// the current question.
var ErrOptionOutOfRange = errors.New("option index out of range")

// DefaultPassMark is the minimum percentage that passes a quiz.
const DefaultPassMark = 70

type Question struct {
	ID           int      `json:"id"`
	Prompt       string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_answer"`
	Explanation  string   `json:"explanation"`
}

type Phase string

const (
	PhaseAnswering Phase = "answering"
	PhaseRevealed  Phase = "revealed"
	PhaseCompleted Phase = "completed"
)

// State is the learner's position in a quiz. The zero value is the initial state.
type State struct {
	Index     int   `json:"current_question"`
	Selected  *int  `json:"selected_answer"`
	Revealed  bool  `json:"revealed"`
	Score     int   `json:"score"`
	Answers   []int `json:"answers"`
	Completed bool  `json:"completed"`
}

func (s State) Phase() Phase {
	switch {
	case s.Completed:
		return PhaseCompleted
	case s.Revealed:
		return PhaseRevealed
	default:
		return PhaseAnswering
	}
}

func (s State) clone() State {
	out := s
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	out.Answers = append([]int(nil), s.Answers...)
	return out
}

// Result is the outcome of a completed quiz.
type Result struct {
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Passed     bool   `json:"passed"`
	Review     []bool `json:"review"`
}

// Controller walks a learner through a fixed question sequence. It is not
// safe for concurrent use.
type Controller struct {
	questions []Question
	passMark  int
	state     State
}

func NewController(questions []Question, passMark int) *Controller {
	return &Controller{
		questions: questions,
		passMark:  passMark,
	}
}

// Restore replaces the state, e.g. from a saved snapshot. Snapshots that do not
// fit the question set are ignored and false is returned.
func (c *Controller) Restore(s State) bool {
	if !c.consistent(s) {
		return false
	}
	c.state = s.clone()
	return true
}

func (c *Controller) consistent(s State) bool {
	n := len(c.questions)
	if s.Index < 0 || s.Index >= n || s.Score < 0 || s.Score > len(s.Answers) {
		return false
	}
	if s.Selected != nil && (*s.Selected < 0 || *s.Selected >= len(c.questions[s.Index].Options)) {
		return false
	}
	switch {
	case s.Completed:
		return len(s.Answers) == n && s.Index == n-1
	case s.Revealed:
		return len(s.Answers) == s.Index+1
	default:
		return len(s.Answers) == s.Index
	}
}

func (c *Controller) State() State {
	return c.state.clone()
}

func (c *Controller) Questions() []Question {
	return c.questions
}

func (c *Controller) Current() Question {
	return c.questions[c.state.Index]
}

// SelectAnswer records a tentative choice. It does nothing once the answer is
// revealed or the quiz is over.
func (c *Controller) SelectAnswer(index int) error {
	if c.state.Revealed || c.state.Completed {
		return nil
	}
	if index < 0 || index >= len(c.Current().Options) {
		return ErrOptionOutOfRange
	}
	c.state.Selected = &index
	return nil
}

// Submit checks the selected answer. It reports false when there was nothing
// to check.
func (c *Controller) Submit() bool {
	if c.state.Selected == nil || c.state.Revealed || c.state.Completed {
		return false
	}
	chosen := *c.state.Selected
	c.state.Answers = append(c.state.Answers, chosen)
	if chosen == c.Current().CorrectIndex {
		c.state.Score++
	}
	c.state.Revealed = true
	return true
}

// Advance moves past a revealed question, completing the quiz after the last one.
func (c *Controller) Advance() bool {
	if !c.state.Revealed || c.state.Completed {
		return false
	}
	if c.state.Index == len(c.questions)-1 {
		c.state.Completed = true
		return true
	}
	c.state.Index++
	c.state.Selected = nil
	c.state.Revealed = false
	return true
}

func (c *Controller) Reset() {
	c.state = State{}
}

// ProgressPercent is the share of questions presented so far, not the score.
func (c *Controller) ProgressPercent() float64 {
	return 100 * float64(c.state.Index+1) / float64(len(c.questions))
}

func (c *Controller) Percentage() int {
	return int(math.Round(100 * float64(c.state.Score) / float64(len(c.questions))))
}

func (c *Controller) Passed() bool {
	return c.Percentage() >= c.passMark
}

// Result is only meaningful once the quiz is completed.
func (c *Controller) Result() Result {
	review := make([]bool, len(c.questions))
	for i, q := range c.questions {
		review[i] = i < len(c.state.Answers) && c.state.Answers[i] == q.CorrectIndex
	}
	return Result{
		Score:      c.state.Score,
		Total:      len(c.questions),
		Percentage: c.Percentage(),
		Passed:     c.Passed(),
		Review:     review,
	}
}

type Op string

const (
	OpSelect  Op = "select"
	OpSubmit  Op = "submit"
	OpAdvance Op = "advance"
	OpReset   Op = "reset"
)

type Command struct {
	Op    Op  `json:"op" validate:"required,oneof=select submit advance reset"`
	Index int `json:"index"`
}

func sameSelection(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Apply runs a command and reports whether the state changed.
func (c *Controller) Apply(cmd Command) (bool, error) {
	switch cmd.Op {
	case OpSelect:
		before := c.state.Selected
		if err := c.SelectAnswer(cmd.Index); err != nil {
			return false, err
		}
		return !sameSelection(before, c.state.Selected), nil
	case OpSubmit:
		return c.Submit(), nil
	case OpAdvance:
		return c.Advance(), nil
	case OpReset:
		c.Reset()
		return true, nil
	default:
		return false, errors.Errorf("unknown quiz command %q", cmd.Op)
	}
}
