package sema

import "github.com/xplshn/mcc/pkg/token"

// loopStack records the loops enclosing the statement being checked.
type loopStack struct {
	loops []token.Token
}

func (s *loopStack) enterLoop(tok token.Token) { s.loops = append(s.loops, tok) }

func (s *loopStack) exitLoop() {
	if len(s.loops) == 0 {
		panic("internal error: exitLoop called outside of a loop")
	}
	s.loops = s.loops[:len(s.loops)-1]
}

func (s *loopStack) inLoop() bool { return len(s.loops) > 0 }
