package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// Request is what the oracle receives for one open-ended answer.
type Request struct {
	QuestionID    string  `json:"question_id"`
	Question      string  `json:"question"`
	ModelAnswer   string  `json:"model_answer"`
	Rubric        string  `json:"rubric,omitempty"`
	StudentAnswer string  `json:"student_answer"`
	MaxPoints     float64 `json:"max_points"`
}

// Oracle grades open-ended answers. It returns the raw structured output,
// which is untrusted and decoded with DecodeResponse.
type Oracle interface {
	Grade(ctx context.Context, req Request) ([]byte, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, req Request) ([]byte, error)

func (f OracleFunc) Grade(ctx context.Context, req Request) ([]byte, error) { return f(ctx, req) }

var ErrMalformedResponse = errors.New("malformed oracle response")

// Response is a tagged union: exactly one of Graded or Refused is set.
type Response struct {
	Graded  *Verdict
	Refused *Refusal
}

type Verdict struct {
	Score       float64
	Confidence  string
	Explanation string
}

type Refusal struct {
	Reason string
}

const (
	responseKindGraded  = "graded"
	responseKindRefused = "refused"
)

type gradedBody struct {
	Kind        string   `json:"kind,omitempty"`
	Score       *float64 `json:"score"`
	Confidence  string   `json:"confidence,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

type refusedBody struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

// DecodeResponse validates raw oracle output against the response schema.
// An absent "kind" is read as "graded". Unknown fields, a missing or
// non-numeric score and trailing data are all rejected.
func DecodeResponse(raw []byte) (Response, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Response{}, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	var env struct {
		Kind *string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	kind := responseKindGraded
	if env.Kind != nil {
		kind = strings.ToLower(strings.TrimSpace(*env.Kind))
	}

	switch kind {
	case responseKindGraded:
		var body gradedBody
		if err := decodeStrict(raw, &body); err != nil {
			return Response{}, err
		}
		if body.Score == nil {
			return Response{}, fmt.Errorf("%w: missing score", ErrMalformedResponse)
		}
		if math.IsNaN(*body.Score) || math.IsInf(*body.Score, 0) {
			return Response{}, fmt.Errorf("%w: score is not finite", ErrMalformedResponse)
		}
		return Response{Graded: &Verdict{
			Score:       *body.Score,
			Confidence:  body.Confidence,
			Explanation: strings.TrimSpace(body.Explanation),
		}}, nil
	case responseKindRefused:
		var body refusedBody
		if err := decodeStrict(raw, &body); err != nil {
			return Response{}, err
		}
		return Response{Refused: &Refusal{Reason: strings.TrimSpace(body.Reason)}}, nil
	default:
		return Response{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedResponse, kind)
	}
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrMalformedResponse)
	}
	return nil
}

// ParseConfidence maps an oracle label to a Confidence. Missing or
// unrecognized labels are Low; ok reports whether the label was recognized.
func ParseConfidence(label string) (c Confidence, ok bool) {
	switch Confidence(strings.ToLower(strings.TrimSpace(label))) {
	case ConfidenceHigh:
		return ConfidenceHigh, true
	case ConfidenceMedium:
		return ConfidenceMedium, true
	case ConfidenceLow:
		return ConfidenceLow, true
	default:
		return ConfidenceLow, false
	}
}
