package manager

import (
	"context"
	"encoding/json"
	"io"

	"answerd/internal/generation"
	"answerd/pkg/types"
)

// Stream writes NDJSON snapshot lines for a session as it changes, ending
// with a line carrying done=true once the session has finished running. It
// returns ctx.Err() if ctx ends first; the session keeps running.
func (m *Manager) Stream(ctx context.Context, id string, w io.Writer, flusher func()) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	var last types.StreamLine
	first := true
	for {
		snap, changed := e.s.Tracker().Watch()
		if snap.State.Terminal() {
			break
		}
		line := streamLine(snap)
		if first || line != last {
			if err := writeLine(w, line, flusher); err != nil {
				return err
			}
			last, first = line, false
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	// The final flush lands after the terminal transition; wait for the run.
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	line := streamLine(e.s.Snapshot())
	line.Done = true
	return writeLine(w, line, flusher)
}

// Generate starts a session and streams it. If ctx ends before the session
// finishes (client disconnect), the session is interrupted.
func (m *Manager) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flusher func()) error {
	s, err := m.Start(ctx, req)
	if err != nil {
		return err
	}
	err = m.Stream(ctx, s.ID(), w, flusher)
	if err != nil && ctx.Err() != nil {
		s.Interrupt()
	}
	return err
}

func streamLine(snap generation.Snapshot) types.StreamLine {
	return types.StreamLine{
		State:    string(snap.State),
		Text:     snap.Response,
		Progress: snap.Progress,
		Error:    snap.Err,
	}
}

func writeLine(w io.Writer, line types.StreamLine, flusher func()) error {
	b, err := json.Marshal(line)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return err
	}
	if flusher != nil {
		flusher()
	}
	return nil
}
