package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/EasterCompany/dex-voice-bridge/notes"
	"github.com/EasterCompany/dex-voice-bridge/realtime"
)

// callAccumulator collects the streamed arguments of one function call.
type callAccumulator struct {
	name      string
	arguments strings.Builder
}

func (s *Session) startCallLocked(item *realtime.Item) {
	if item == nil || item.CallID == "" {
		return
	}
	if acc, ok := s.pendingCalls[item.CallID]; ok {
		// deltas arrived first; keep their text and record the name
		if acc.name == "" {
			acc.name = item.Name
		}
		return
	}
	s.pendingCalls[item.CallID] = &callAccumulator{name: item.Name}
	s.logf("Function call %s started: %s", item.CallID, item.Name)
}

func (s *Session) appendCallArgumentsLocked(callID, delta string) {
	if callID == "" {
		return
	}
	acc, ok := s.pendingCalls[callID]
	if !ok {
		acc = &callAccumulator{}
		s.pendingCalls[callID] = acc
	}
	acc.arguments.WriteString(delta)
}

// finishCallLocked dispatches a completed call and answers it. The name from
// the call start wins over the one on the done event; argument shape is only
// consulted when both are empty. Failures stay local to the call.
func (s *Session) finishCallLocked(callID, doneName, doneArguments string) {
	if callID == "" {
		return
	}
	var name, arguments string
	if acc, ok := s.pendingCalls[callID]; ok {
		name = acc.name
		arguments = acc.arguments.String()
		delete(s.pendingCalls, callID)
	}
	if name == "" {
		name = doneName
	}
	if arguments == "" {
		arguments = doneArguments
	}

	var out functionOutput
	call, err := DecodeFunctionCall(name, arguments)
	if err != nil {
		s.log.Error(fmt.Sprintf("Function call %s in guild %s", callID, s.guildID), err)
		s.deps.Metrics.FunctionCall(nameOrUnknown(name), "invalid")
		out = failure("%v", err)
	} else {
		out = s.executeLocked(call)
		outcome := "ok"
		if !out.Success {
			outcome = "failed"
		}
		s.deps.Metrics.FunctionCall(metricName(call), outcome)
	}

	if s.ai == nil {
		return
	}
	if err := s.ai.Send(realtime.FunctionCallOutput(callID, out.encode())); err != nil {
		s.log.Error(fmt.Sprintf("Answering function call %s in guild %s", callID, s.guildID), err)
	}
}

func (s *Session) executeLocked(call FunctionCall) functionOutput {
	switch c := call.(type) {
	case EndCall:
		return s.endCallLocked(c)
	case MuteSelf:
		return s.muteSelfLocked(c)
	case TakeNotes:
		return s.takeNotesLocked(c)
	case UnknownCall:
		s.logf("Unknown function: %s", c.Name)
		return failure("Unknown function: %s", c.Name)
	default:
		return failure("Unknown function: %s", call.FunctionName())
	}
}

// endCallLocked acknowledges right away and stops the session after the grace
// delay so the AI's goodbye can still play.
func (s *Session) endCallLocked(c EndCall) functionOutput {
	s.logf("AI requested to end call: %s", c.Reason)
	if s.endTimer == nil {
		s.endReason = c.Reason
		reason := c.Reason
		s.endTimer = s.deps.Scheduler.AfterFunc(s.cfg.EndCallGrace, func() {
			s.Stop("end_call: " + reason)
		})
	}
	return functionOutput{Success: true, Message: "Call ended successfully. Goodbye!"}
}

func (s *Session) muteSelfLocked(c MuteSelf) functionOutput {
	seconds := s.cfg.MuteDefault.Seconds()
	if c.DurationSeconds != nil && *c.DurationSeconds > 0 {
		seconds = *c.DurationSeconds
	}
	if limit := s.cfg.MuteMax.Seconds(); seconds > limit {
		seconds = limit
	}
	reason := c.Reason
	if reason == "" {
		reason = "thinking"
	}

	s.isMuted = true
	if s.muteTimer != nil {
		s.muteTimer.Stop()
	}
	s.muteGen++
	gen := s.muteGen
	s.muteTimer = s.deps.Scheduler.AfterFunc(time.Duration(seconds*float64(time.Second)), func() {
		s.unmute(gen)
	})
	s.logf("AI muted for %gs: %s", seconds, reason)

	return functionOutput{
		Success:         true,
		Message:         fmt.Sprintf("Muted for %g seconds. Listening...", seconds),
		DurationSeconds: &seconds,
		Reason:          reason,
	}
}

func (s *Session) unmute(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || gen != s.muteGen {
		return
	}
	s.isMuted = false
	s.muteTimer = nil
	s.logf("AI unmuted automatically")
}

func (s *Session) takeNotesLocked(c TakeNotes) functionOutput {
	category := notes.ParseCategory(c.Category)
	if c.Category != "" && string(category) != c.Category {
		s.logf("Unknown note category %q, using %s", c.Category, category)
	}
	count := s.notes.Append(notes.Note{
		Timestamp: s.deps.Now(),
		Content:   c.NoteContent,
		Category:  category,
	})
	s.logf("AI took note [%s]: %s", category, c.NoteContent)

	return functionOutput{
		Success:   true,
		Message:   fmt.Sprintf("Note saved: [%s] %s", category, c.NoteContent),
		NoteCount: &count,
	}
}

func nameOrUnknown(name string) string {
	switch name {
	case FuncEndCall, FuncMuteSelf, FuncTakeNotes:
		return name
	default:
		return funcUnknown
	}
}

// metricName keeps label cardinality bounded.
func metricName(call FunctionCall) string {
	if _, ok := call.(UnknownCall); ok {
		return funcUnknown
	}
	return call.FunctionName()
}
