package series

// Series is implemented by *RegularSeries and *IrregularSeries.
type Series interface {
	Type() string
	Count() int
	Reset()
}

// Handle is the navigation contract shared by the period handles of both
// series kinds.
type Handle[P any] interface {
	nextObservation() (P, bool)
	nextPeriod() (P, bool)
}

// Iterable is a series that visits its observed periods in order.
type Iterable[P any] interface {
	Each(fn func(p P) error) error
}

// walk calls fn on first and on every handle step yields after it. The step is
// taken after fn returns, so fn may modify the series.
func walk[P Handle[P]](first P, step func(P) (P, bool), fn func(P) error) error {
	p := first
	for {
		if err := fn(p); err != nil {
			return err
		}
		next, ok := step(p)
		if !ok {
			return nil
		}
		p = next
	}
}

// Reduce folds fn over the observed periods of s in chronological order.
// An error from fn stops the fold and is returned unchanged.
func Reduce[P, A any](s Iterable[P], fn func(acc A, p P) (A, error), init A) (A, error) {
	acc := init
	err := s.Each(func(p P) error {
		next, err := fn(acc, p)
		if err != nil {
			return err
		}
		acc = next
		return nil
	})
	return acc, err
}

var (
	_ Series                     = (*RegularSeries)(nil)
	_ Series                     = (*IrregularSeries)(nil)
	_ Iterable[*RegularPeriod]   = (*RegularSeries)(nil)
	_ Iterable[*IrregularPeriod] = (*IrregularSeries)(nil)
	_ Handle[*RegularPeriod]     = (*RegularPeriod)(nil)
	_ Handle[*IrregularPeriod]   = (*IrregularPeriod)(nil)
)
