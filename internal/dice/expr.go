package dice

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// MaxRoll bounds the dice an expression may name before the ten dice rule.
	MaxRoll = 100
	// RaiseStep is how much each called raise adds to the target number.
	RaiseStep = 5
	// tenDiceBonus is the flat bonus per die the ten dice rule cannot keep.
	tenDiceBonus = 2
)

var ErrInvalidExpression = errors.New("invalid roll expression")

var poolPattern = regexp.MustCompile(`^(\d+)k(\d+)([+-]\d+)?$`)

// Expression is a parsed roll such as "7k4+5 m e tn:30 r:2".
// Roll and Keep are as written, before the ten dice rule.
type Expression struct {
	Roll         int
	Keep         int
	Modifier     int
	Mode         ExplosionMode
	Emphasis     bool
	TargetNumber int // 0 when absent
	CalledRaises int
}

// ParseExpression reads "XkY[+/-Z]" followed by space separated options:
// a mode (u, s, m or the long names), e for emphasis, a further "+N"/"-N"
// modifier, tn:N and r:N. Mode defaults to skilled.
func ParseExpression(s string) (Expression, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return Expression{}, fmt.Errorf("%w: empty", ErrInvalidExpression)
	}
	m := poolPattern.FindStringSubmatch(fields[0])
	if m == nil {
		return Expression{}, fmt.Errorf("%w: %q is not XkY[+/-Z]", ErrInvalidExpression, fields[0])
	}
	// the pattern only admits digits, so Atoi fails on overflow alone
	roll, err := strconv.Atoi(m[1])
	if err != nil {
		return Expression{}, fmt.Errorf("%w: roll %q", ErrInvalidExpression, m[1])
	}
	keep, err := strconv.Atoi(m[2])
	if err != nil {
		return Expression{}, fmt.Errorf("%w: keep %q", ErrInvalidExpression, m[2])
	}
	e := Expression{Roll: roll, Keep: keep, Mode: ExplodeOnMax}
	if m[3] != "" {
		if e.Modifier, err = strconv.Atoi(m[3]); err != nil {
			return Expression{}, fmt.Errorf("%w: modifier %q", ErrInvalidExpression, m[3])
		}
	}
	for _, tok := range fields[1:] {
		if err := e.apply(tok); err != nil {
			return Expression{}, err
		}
	}
	if err := e.Validate(); err != nil {
		return Expression{}, err
	}
	return e, nil
}

func (e *Expression) apply(tok string) error {
	if tok[0] == '+' || tok[0] == '-' {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return fmt.Errorf("%w: modifier %q", ErrInvalidExpression, tok)
		}
		e.Modifier += v
		return nil
	}
	key, val, kv := strings.Cut(tok, ":")
	if !kv {
		switch tok {
		case "e", "emph", "emphasis":
			e.Emphasis = true
			return nil
		}
		mode, err := ParseExplosionMode(tok)
		if err != nil {
			return fmt.Errorf("%w: unknown option %q", ErrInvalidExpression, tok)
		}
		e.Mode = mode
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%w: %s needs an integer, got %q", ErrInvalidExpression, key, val)
	}
	switch key {
	case "tn", "t", "vs":
		if n < 1 {
			return fmt.Errorf("%w: tn %d must be at least 1", ErrInvalidExpression, n)
		}
		e.TargetNumber = n
	case "r", "raises":
		if n < 0 {
			return fmt.Errorf("%w: raises %d must not be negative", ErrInvalidExpression, n)
		}
		e.CalledRaises = n
	case "e", "emph", "emphasis":
		// only rerolling ones is simulated
		if n != 1 {
			return fmt.Errorf("%w: emphasis threshold %d unsupported, only 1", ErrInvalidExpression, n)
		}
		e.Emphasis = true
	default:
		return fmt.Errorf("%w: unknown option %q", ErrInvalidExpression, key)
	}
	return nil
}

// Validate checks the written pool: 1 <= keep <= roll <= MaxRoll.
func (e Expression) Validate() error {
	if e.Roll < 1 || e.Roll > MaxRoll {
		return fmt.Errorf("%w: roll %d outside 1..%d", ErrInvalidExpression, e.Roll, MaxRoll)
	}
	if e.Keep < 1 || e.Keep > e.Roll {
		return fmt.Errorf("%w: keep %d outside 1..%d", ErrInvalidExpression, e.Keep, e.Roll)
	}
	if !e.Mode.Valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidExpression, ErrUnknownMode, string(e.Mode))
	}
	if e.TargetNumber < 0 || e.CalledRaises < 0 {
		return fmt.Errorf("%w: negative tn or raises", ErrInvalidExpression)
	}
	return nil
}

// TenDice is the outcome of folding an oversized pool into at most 10k10.
type TenDice struct {
	Roll    int
	Keep    int
	Bonus   int
	Applied bool
}

// ApplyTenDiceRule folds dice beyond MaxPool into the pool:
// every two extra rolled dice add one kept die while fewer than ten are
// kept, and once ten are kept each remaining extra die, rolled or kept,
// is worth a flat +2. An odd rolled die left below 10 kept is lost.
//
//	12k4  -> 10k5
//	14k12 -> 10k10+12
func ApplyTenDiceRule(roll, keep int) TenDice {
	if roll <= MaxPool {
		return TenDice{Roll: roll, Keep: keep}
	}
	out := TenDice{Roll: MaxPool, Keep: keep, Applied: true}
	extra := roll - MaxPool
	if out.Keep > MaxPool {
		out.Bonus += tenDiceBonus * (out.Keep - MaxPool)
		out.Keep = MaxPool
	}
	for extra >= 2 && out.Keep < MaxPool {
		out.Keep++
		extra -= 2
	}
	if out.Keep == MaxPool {
		out.Bonus += tenDiceBonus * extra
	}
	return out
}

// TenDice applies the ten dice rule to the written pool.
func (e Expression) TenDice() TenDice { return ApplyTenDiceRule(e.Roll, e.Keep) }

// Config is the table configuration the expression resolves to.
func (e Expression) Config() (RollConfig, error) {
	t := e.TenDice()
	return NewRollConfig(t.Roll, t.Keep, e.Mode, e.Emphasis)
}

// TotalModifier is the written modifier plus any ten dice bonus.
func (e Expression) TotalModifier() int { return e.Modifier + e.TenDice().Bonus }

// EffectiveTN is the target number raised by the called raises.
func (e Expression) EffectiveTN() int { return e.TargetNumber + RaiseStep*e.CalledRaises }

// AchievedRaises counts whole raises total clears against tn, or 0 on a miss.
func AchievedRaises(total, tn int) int {
	if total < tn {
		return 0
	}
	return (total - tn) / RaiseStep
}

// String renders the written expression in canonical form.
func (e Expression) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%dk%d", e.Roll, e.Keep)
	if e.Modifier != 0 {
		fmt.Fprintf(&b, "%+d", e.Modifier)
	}
	fmt.Fprintf(&b, " %s", e.Mode.Letter())
	if e.Emphasis {
		b.WriteString(" e")
	}
	if e.TargetNumber > 0 {
		fmt.Fprintf(&b, " tn:%d", e.TargetNumber)
	}
	if e.CalledRaises > 0 {
		fmt.Fprintf(&b, " r:%d", e.CalledRaises)
	}
	return b.String()
}
