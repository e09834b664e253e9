package blink

import "context"

// Scanner delivers advertisements until ctx ends or the radio fails.
type Scanner interface {
	Scan(ctx context.Context, handle func(Advertisement)) error
	Close() error
}

// Opener acquires a Scanner.
type Opener func(ctx context.Context) (Scanner, error)

// openWithin runs open, which may ignore ctx, and releases the scanner it
// returns if ctx ended in the meantime.
func openWithin(ctx context.Context, open func() (Scanner, error)) (Scanner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc, err := open()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}
