package vgroup

import (
	"bytes"
	"context"

	"www.velocidex.com/golang/vgroup/marshal"
	"www.velocidex.com/golang/vgroup/session"
)

// A part of the output of a plan step, encoded as JSON lines. Steps
// producing rows are split into parts of at most max_rows rows.
type JsonResult struct {
	Step    int
	Name    string
	Part    int
	Columns []string `json:",omitempty"`
	Payload []byte
}

// Returns a channel over which the results of every step producing
// output are sent. The error of a failing step is sent on the error
// channel after all parts before it. Both channels are closed when
// the plan is done.
func GetResponseChannel(ctx context.Context, s *session.Session, plan *Plan,
	max_rows int) (<-chan *JsonResult, <-chan error) {
	result_chan := make(chan *JsonResult)
	err_chan := make(chan error, 1)

	if max_rows <= 0 {
		max_rows = 1000
	}

	go func() {
		defer close(err_chan)
		defer close(result_chan)

		send := func(result *JsonResult) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case result_chan <- result:
				return nil
			}
		}

		err := execute(ctx, s, plan, func(step *StepResult) error {
			if step.Result == nil {
				return nil
			}

			rows, ok := step.Result.(*marshal.Rows)
			if !ok {
				payload, err := encode(step.Result)
				if err != nil {
					return err
				}
				return send(&JsonResult{Step: step.Index, Name: step.Name, Payload: payload})
			}

			// Ship rows in parts. A result without rows still
			// sends its columns.
			part := 0
			for start := 0; start == 0 || start < rows.Len(); start += max_rows {
				end := min(start+max_rows, rows.Len())
				chunk := &marshal.Rows{Columns: rows.Columns, Rows: rows.Rows[start:end]}
				payload, err := encode(chunk)
				if err != nil {
					return err
				}

				err = send(&JsonResult{
					Step:    step.Index,
					Name:    step.Name,
					Part:    part,
					Columns: rows.Columns,
					Payload: payload,
				})
				if err != nil {
					return err
				}
				part++
			}
			return nil
		})
		if err != nil {
			err_chan <- err
		}
	}()

	return result_chan, err_chan
}

// A convenience function producing the output of all steps as one
// JSON lines blob.
func OutputJSON(ctx context.Context, s *session.Session, plan *Plan) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := execute(ctx, s, plan, func(step *StepResult) error {
		if step.Result == nil {
			return nil
		}
		return marshal.WriteJSON(buf, step.Result)
	})
	return buf.Bytes(), err
}

func encode(result interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := marshal.WriteJSON(buf, result)
	return buf.Bytes(), err
}
