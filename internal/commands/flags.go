package commands

import (
	"strconv"

	"github.com/spf13/pflag"
)

// percentValue is an int flag read strictly in base 10. pflag's IntVar
// guesses the base from the prefix, which turns "010" into 8.
type percentValue int

var _ pflag.Value = (*percentValue)(nil)

func (p *percentValue) String() string {
	return strconv.Itoa(int(*p))
}

func (p *percentValue) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*p = percentValue(v)
	return nil
}

func (p *percentValue) Type() string {
	return "int"
}
